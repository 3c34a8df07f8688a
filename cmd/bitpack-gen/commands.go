package main

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/robert-at-pretension-io/bitpack-gen/internal/config"
	"github.com/robert-at-pretension-io/bitpack-gen/internal/generator"
	"github.com/robert-at-pretension-io/bitpack-gen/internal/modes"
	"github.com/robert-at-pretension-io/bitpack-gen/internal/templates"
)

// options holds every flag value. Flags override the configuration file.
type options struct {
	configPath  string
	modesPath   string
	logLevel    string
	logFormat   string
	verbose     bool
	templateDir string
	jsonOut     bool
	timingPath  string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "bitpack-gen SOURCE_FILE [OUTPUT_DIR]",
		Short: "Generate the bitstream wrapper for a stochastic circuit",
		Long: `Reads the port list of a SystemVerilog circuit, tags every port with a
stochastic encoding mode, and expands the wrapper templates into OUTPUT_DIR.

OUTPUT_DIR defaults to the configured outputDir (bitpack_out).

Configuration is looked up in:
  1. ./bitpack_gen.json
  2. ./.bitpack_gen.json
  3. <source dir>/bitpack_gen.json
  4. ~/.config/bitpack_gen/config.json

Run 'bitpack-gen init' to create a configuration file.`,
		Args:          usageArgs(cobra.RangeArgs(1, 2)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, o, args, stdout, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	pf := root.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", "", "configuration file (skips the search path)")
	pf.StringVar(&o.modesPath, "modes", "", "mode registry file (.json, .yaml, .yml, .hcl)")
	pf.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&o.logFormat, "log-format", "", "log format: text, json")
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "log detection events (same as --log-level debug)")
	addGenerateFlags(root.Flags(), o)

	generate := &cobra.Command{
		Use:   "generate SOURCE_FILE [OUTPUT_DIR]",
		Short: "Expand every template for SOURCE_FILE",
		Args:  usageArgs(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, o, args, stdout, stderr)
		},
	}
	addGenerateFlags(generate.Flags(), o)

	root.AddCommand(generate, newModesCmd(o, stdout), newInitCmd(stdout))
	return root
}

func addGenerateFlags(flags *pflag.FlagSet, o *options) {
	flags.StringVar(&o.templateDir, "templates", "", "template directory (default: embedded templates)")
	flags.BoolVar(&o.jsonOut, "json", false, "print the result as JSON")
	flags.StringVar(&o.timingPath, "timing", "", "write JSONL stage timing to this file")
}

func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig(cmd *cobra.Command, o *options, root string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load(root)
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("modes") {
		cfg.Modes = o.modesPath
	}
	if flags.Changed("templates") {
		cfg.TemplateDir = o.templateDir
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, usageError(err)
	}
	return cfg, nil
}

func runGenerate(cmd *cobra.Command, o *options, args []string, stdout, stderr io.Writer) error {
	source := args[0]
	cfg, err := loadConfig(cmd, o, filepath.Dir(source))
	if err != nil {
		return err
	}
	outputDir := cfg.OutputDir
	if len(args) == 2 {
		outputDir = args[1]
	}

	g := generator.New(cfg, generator.NewLogger(cfg.Log.Level, cfg.Log.Format, stderr))
	g.TimingPath = o.timingPath

	res, err := g.Run(cmd.Context(), source, outputDir)
	if err != nil {
		return err
	}

	if o.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(stdout, "%s: %d inputs, %d outputs, %d modes (%d bit tag)\n",
		res.Module.Name, len(res.Module.Inputs), len(res.Module.Outputs), len(res.Modes), res.WidthBits)
	for _, f := range res.Files {
		fmt.Fprintf(stdout, "  wrote %s\n", f)
	}
	if n := len(res.Diagnostics); n > 0 {
		fmt.Fprintf(stdout, "%d warning(s)\n", n)
	}
	return nil
}

func newModesCmd(o *options, stdout io.Writer) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "modes",
		Short: "Validate the mode registry and list modes in priority order",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, o, ".")
			if err != nil {
				return err
			}
			var reg *modes.Registry
			if cfg.Modes == "" {
				reg, err = modes.LoadDefault()
			} else {
				reg, err = modes.Load(cfg.Modes)
			}
			if err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(reg.Modes())
			}
			return printModes(stdout, reg)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the registry as JSON")
	return cmd
}

func printModes(w io.Writer, reg *modes.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRIORITY\tNAME\tPOSTFIX\tDEFAULT\tRANGE")
	for i, m := range reg.Modes() {
		def := ""
		if m.Default {
			def = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%g..%g\n",
			i, m.Name, strings.Join(m.Postfix, ","), def, m.Minimum, m.Maximum)
	}
	return tw.Flush()
}

const registryFileName = "bitpack_modes.json"

func newInitCmd(stdout io.Writer) *cobra.Command {
	var force bool
	var dir, templateDir string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create bitpack_gen.json and an editable copy of the default registry",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(_ *cobra.Command, _ []string) error {
			configPath := filepath.Join(dir, config.FileName)
			registryPath := filepath.Join(dir, registryFileName)
			if !force {
				for _, p := range []string{configPath, registryPath} {
					if _, err := os.Stat(p); err == nil {
						return fmt.Errorf("%s already exists (use --force to overwrite)", p)
					}
				}
			}

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", dir, err)
			}
			if err := os.WriteFile(registryPath, modes.DefaultJSON(), 0o644); err != nil {
				return fmt.Errorf("writing registry: %w", err)
			}

			cfg := config.DefaultConfig()
			cfg.Modes = registryFileName
			if templateDir != "" {
				names, err := exportTemplates(filepath.Join(dir, templateDir))
				if err != nil {
					return err
				}
				cfg.TemplateDir = templateDir
				cfg.Templates = names
			}
			if err := cfg.Save(configPath); err != nil {
				return err
			}

			fmt.Fprintf(stdout, "Created %s\n", configPath)
			fmt.Fprintf(stdout, "Created %s\n", registryPath)
			if templateDir != "" {
				fmt.Fprintf(stdout, "Exported templates to %s\n", filepath.Join(dir, templateDir))
			}
			fmt.Fprintln(stdout, "\nEdit these files to configure:")
			fmt.Fprintln(stdout, "  - Encoding modes and their port postfixes")
			fmt.Fprintln(stdout, "  - Output directory and logging")
			return nil
		},
	}
	flags := cmd.Flags()
	flags.BoolVarP(&force, "force", "f", false, "overwrite existing files")
	flags.StringVar(&dir, "dir", ".", "directory to initialize")
	flags.StringVar(&templateDir, "templates", "", "also export the embedded templates into this directory")
	return cmd
}

func exportTemplates(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	src := templates.FS()
	names := templates.Names()
	for _, name := range names {
		data, err := fs.ReadFile(src, name)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return nil, fmt.Errorf("writing template %s: %w", name, err)
		}
	}
	return names, nil
}
