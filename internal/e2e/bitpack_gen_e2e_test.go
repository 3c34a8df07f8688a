package e2e

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/robert-at-pretension-io/bitpack-gen/internal/generator"
)

var outputNames = []string{"bitpack_lib.py", "user_wrapper.sv", "bitpack_sngen.sv", "bitpack_sncnt.sv"}

func TestBitpackGenE2E_DefaultRegistry(t *testing.T) {
	repoRoot := findRepoRoot(t)
	bin := buildBinary(t, repoRoot)
	env := isolatedEnv(t)

	outDir := filepath.Join(t.TempDir(), "out")
	result := runJSON(t, bin, env, filepath.Join(repoRoot, "testdata", "circuits", "mac.sv"), outDir)

	if result.Module.Name != "mac" || result.Module.Clock != "clk" || result.Module.Reset != "rst_n" {
		t.Fatalf("unexpected module header: %+v", result.Module)
	}
	if result.WidthBits != 2 {
		t.Fatalf("width bits = %d, want 2", result.WidthBits)
	}

	var got []string
	for _, m := range result.Modes {
		got = append(got, m.Name)
	}
	if diff := cmp.Diff([]string{"pair", "bipolar", "unipolar"}, got); diff != "" {
		t.Fatalf("used modes mismatch (-want +got):\n%s", diff)
	}

	wrapper := readFile(t, filepath.Join(outDir, "user_wrapper.sv"))
	for _, want := range []string{
		"    localparam src_mode = 26'b00000000000000000101010110;\n",
		"    localparam dst_mode = 6'b000001;\n",
		"    mac user (\n",
		"        .rst_n(proc_en),\n",
		"        .w_m(src_sn_n[7:0]),\n",
		"        .bias(src_sn_p[12]),\n",
		"        .done_b(dst_sn_p[2]));\n",
	} {
		if !strings.Contains(wrapper, want) {
			t.Errorf("user_wrapper.sv missing %q\n%s", want, wrapper)
		}
	}

	sngen := readFile(t, filepath.Join(outDir, "bitpack_sngen.sv"))
	for _, want := range []string{"parameter [1:0] MODE = 2'd0", "begin : gen_pair", "end else if (MODE == 1) begin : gen_bipolar", "end else begin : gen_unipolar"} {
		if !strings.Contains(sngen, want) {
			t.Errorf("bitpack_sngen.sv missing %q\n%s", want, sngen)
		}
	}
	if strings.Contains(sngen, "BITPACK_") {
		t.Errorf("bitpack_sngen.sv still contains a directive:\n%s", sngen)
	}
}

func TestBitpackGenE2E_RegistryFormatsAgree(t *testing.T) {
	repoRoot := findRepoRoot(t)
	bin := buildBinary(t, repoRoot)
	env := isolatedEnv(t)
	source := filepath.Join(repoRoot, "testdata", "circuits", "mac.sv")

	outputs := map[string]map[string]string{}
	for _, ext := range []string{"json", "yaml", "hcl"} {
		outDir := filepath.Join(t.TempDir(), ext)
		registry := filepath.Join(repoRoot, "testdata", "registries", "two_modes."+ext)
		result := runJSON(t, bin, env, source, outDir, "--modes", registry)
		if result.WidthBits != 1 || len(result.Modes) != 2 {
			t.Fatalf("%s: unexpected assignment %+v", ext, result.Modes)
		}

		files := map[string]string{}
		for _, name := range outputNames {
			files[name] = readFile(t, filepath.Join(outDir, name))
		}
		outputs[ext] = files
	}

	if !strings.Contains(outputs["json"]["bitpack_lib.py"], "_x_b.setrange(0.5, 0)") {
		t.Errorf("x_b should fall back to the scaled mode:\n%s", outputs["json"]["bitpack_lib.py"])
	}
	for _, ext := range []string{"yaml", "hcl"} {
		if diff := cmp.Diff(outputs["json"], outputs[ext]); diff != "" {
			t.Errorf("%s registry output differs from json (-json +%s):\n%s", ext, ext, diff)
		}
	}
}

func TestBitpackGenE2E_MissingClock(t *testing.T) {
	repoRoot := findRepoRoot(t)
	bin := buildBinary(t, repoRoot)

	outDir := filepath.Join(t.TempDir(), "out")
	cmd := exec.Command(bin, filepath.Join(repoRoot, "testdata", "circuits", "noclock.sv"), outDir)
	cmd.Env = isolatedEnv(t)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
		t.Fatalf("expected exit code 1, got %v\nstderr:\n%s", err, stderr.String())
	}
	if !strings.Contains(stderr.String(), "clock input is not detected") {
		t.Errorf("stderr should name the missing clock:\n%s", stderr.String())
	}
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Errorf("output directory must not exist after a fatal error")
	}
}

func runJSON(t *testing.T, bin string, env []string, source, outDir string, extra ...string) generator.Result {
	t.Helper()

	args := append([]string{"generate", "--json", "--log-level", "warn"}, extra...)
	args = append(args, source, outDir)
	cmd := exec.Command(bin, args...)
	cmd.Env = env
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("bitpack-gen failed for %s: %v\nstderr:\n%s", source, err, stderr.String())
	}

	var result generator.Result
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("parse JSON output for %s: %v\nstdout:\n%s", source, err, stdout.String())
	}
	return result
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// isolatedEnv keeps a user-level config file from leaking into the run.
func isolatedEnv(t *testing.T) []string {
	t.Helper()
	home := t.TempDir()
	return append(os.Environ(),
		"HOME="+home,
		"XDG_CONFIG_HOME="+filepath.Join(home, ".config"),
		"BITPACK_TIMING_JSONL=",
	)
}

func buildBinary(t *testing.T, repoRoot string) string {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), "bitpack-gen")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/bitpack-gen")
	cmd.Dir = repoRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build bitpack-gen failed: %v\n%s", err, string(out))
	}
	return binPath
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	dir := start
	for {
		candidate := filepath.Join(dir, "testdata", "circuits", "mac.sv")
		if _, err := os.Stat(candidate); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("repo root not found from %s", start)
		}
		dir = parent
	}
}
