// Package generator runs one generation: load the mode registry, classify
// the circuit description, assign mode IDs, expand every template, and write
// the results.
package generator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robert-at-pretension-io/bitpack-gen/internal/classifier"
	"github.com/robert-at-pretension-io/bitpack-gen/internal/config"
	"github.com/robert-at-pretension-io/bitpack-gen/internal/diag"
	"github.com/robert-at-pretension-io/bitpack-gen/internal/emitter"
	"github.com/robert-at-pretension-io/bitpack-gen/internal/expander"
	"github.com/robert-at-pretension-io/bitpack-gen/internal/modes"
	"github.com/robert-at-pretension-io/bitpack-gen/internal/templates"
)

// IOError reports an unreadable input or an unwritable output. Writes that
// already happened are not rolled back.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Generator drives the pipeline.
type Generator struct {
	// Configuration loaded from bitpack_gen.json
	Config *config.Config

	// Logger receives stage progress and diagnostics
	Logger *slog.Logger

	// TimingPath enables JSONL stage timing when set
	TimingPath string

	// Registry overrides Config.Modes when set (for tests)
	Registry *modes.Registry
}

// New creates a Generator.
func New(cfg *config.Config, logger *slog.Logger) *Generator {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Generator{Config: cfg, Logger: logger}
}

// UsedMode is a mode that received an ID in this run.
type UsedMode struct {
	Name    string   `json:"name"`
	ID      int      `json:"id"`
	Postfix []string `json:"postfix"`
}

// Result is the structured outcome of a run.
type Result struct {
	Module      *classifier.Module `json:"module"`
	Modes       []UsedMode         `json:"modes"`
	WidthBits   int                `json:"width_bits"`
	Files       []string           `json:"files"`
	Diagnostics diag.List          `json:"diagnostics"`
	Timings     []StageTiming      `json:"timings,omitempty"`
}

// Run generates every template for the description at source into outputDir.
// Fatal conditions found before writing leave outputDir untouched.
func (g *Generator) Run(ctx context.Context, source, outputDir string) (*Result, error) {
	runStart := time.Now()
	timing, err := newStageClock(runStart, g.resolveTimingPath())
	defer timing.Close()
	if err != nil {
		g.Logger.Warn("timing output disabled", "error", err)
	}

	result, err := g.run(ctx, timing, source, outputDir)
	timing.add("total", "stage", "", runStart, err)
	if result != nil {
		result.Timings = timing.timings()
	}
	return result, err
}

func (g *Generator) run(ctx context.Context, timing *stageClock, source, outputDir string) (*Result, error) {
	log := g.Logger
	result := &Result{}

	var reg *modes.Registry
	err := timing.stage("load", func() error {
		var err error
		reg, err = g.loadRegistry()
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Debug("mode registry loaded", "modes", reg.String())

	var lines []string
	err = timing.stage("read", func() error {
		data, err := os.ReadFile(source)
		if err != nil {
			return &IOError{Op: "read", Path: source, Err: err}
		}
		lines = classifier.SplitLines(string(data))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Info("detecting input/output ports", "source", source)
	asg := reg.NewAssignment()
	var mod *classifier.Module
	err = timing.stage("classify", func() error {
		c := classifier.New(asg)
		c.Source = source
		var diags diag.List
		var err error
		mod, diags, err = c.Classify(lines)
		result.Diagnostics = append(result.Diagnostics, diags...)
		return err
	})
	g.logDiagnostics(result.Diagnostics)
	if err != nil {
		return result, err
	}
	for _, ev := range mod.Events {
		log.Debug(ev)
	}
	result.Module = mod

	_ = timing.stage("assign", func() error {
		result.WidthBits = asg.AssignIDs()
		return nil
	})
	for _, idx := range asg.UsedModes() {
		m := reg.Mode(idx)
		id, _ := asg.ID(idx)
		result.Modes = append(result.Modes, UsedMode{Name: m.Name, ID: id, Postfix: m.Postfix})
		log.Debug("mode assigned", "mode", m.Name, "id", id)
	}
	log.Info("ports classified",
		"module", mod.Name,
		"inputs", len(mod.Inputs),
		"outputs", len(mod.Outputs),
		"modes", asg.UsedCount(),
		"width_bits", result.WidthBits)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	fsys, names := g.templateSource()
	var outputs []expander.Output
	err = timing.stage("expand", func() error {
		in := &emitter.Input{Module: mod, Assignment: asg}
		var diags diag.List
		var err error
		outputs, diags, err = expander.New(fsys, names, in).ExpandAll()
		g.logDiagnostics(diags)
		result.Diagnostics = append(result.Diagnostics, diags...)
		if err != nil {
			return &IOError{Op: "read template", Path: g.templateLabel(), Err: err}
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	err = timing.stage("write", func() error {
		files, err := g.write(timing, outputDir, outputs)
		result.Files = files
		return err
	})
	return result, err
}

func (g *Generator) loadRegistry() (*modes.Registry, error) {
	if g.Registry != nil {
		return g.Registry, nil
	}
	if g.Config.Modes == "" {
		return modes.LoadDefault()
	}
	reg, err := modes.Load(g.Config.Modes)
	var ce *modes.ConfigError
	if err != nil && !errors.As(err, &ce) {
		return nil, &IOError{Op: "read", Path: g.Config.Modes, Err: err}
	}
	return reg, err
}

func (g *Generator) templateSource() (fs.FS, []string) {
	names := g.Config.Templates
	if len(names) == 0 {
		names = templates.Names()
	}
	if g.Config.TemplateDir == "" {
		return templates.FS(), names
	}
	return os.DirFS(g.Config.TemplateDir), names
}

func (g *Generator) templateLabel() string {
	if g.Config.TemplateDir == "" {
		return "<embedded templates>"
	}
	return g.Config.TemplateDir
}

func (g *Generator) write(timing *stageClock, outputDir string, outputs []expander.Output) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, &IOError{Op: "create", Path: outputDir, Err: err}
	}
	var files []string
	for _, out := range outputs {
		path := filepath.Join(outputDir, out.Name)
		g.Logger.Info("generating", "file", path)
		start := time.Now()
		err := os.WriteFile(path, out.Content, 0o644)
		timing.wrote(path, start, err)
		if err != nil {
			return files, &IOError{Op: "write", Path: path, Err: err}
		}
		files = append(files, path)
	}
	return files, nil
}

func (g *Generator) logDiagnostics(diags diag.List) {
	for _, d := range diags {
		g.Logger.Warn(d.Message, "kind", string(d.Kind), "source", d.Source, "line", d.Line)
	}
}
