package classifier

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/robert-at-pretension-io/bitpack-gen/internal/diag"
	"github.com/robert-at-pretension-io/bitpack-gen/internal/modes"
)

const sampleDescription = `// product and average of stochastic streams
module prodavg (
    input  logic       clk, rst,   // clock and reset
    input  logic [3:0] a_p, a_m,
    input  logic [1:0] sel_b,
    input  logic       w,
    output logic       prod_b,
    output logic       avg
);
    assign prod_b = ~(a_p[0] ^ a_m[0]);
endmodule
`

func defaultAssignment(t *testing.T) *modes.Assignment {
	t.Helper()
	reg, err := modes.LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	return reg.NewAssignment()
}

func ignoreEvents() cmp.Option {
	return cmpopts.IgnoreFields(Module{}, "Events")
}

func TestClassifySample(t *testing.T) {
	asg := defaultAssignment(t)
	mod, diags, err := Classify(SplitLines(sampleDescription), asg)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}

	want := &Module{
		Name:  "prodavg",
		Clock: "clk",
		Reset: "rst",
		Inputs: []Port{
			{Name: "a", Width: 4, Direction: Input, Mode: 0, ModeName: "pair", Pair: []string{"a_p", "a_m"}, Line: 4},
			{Name: "sel_b", Width: 2, Direction: Input, Mode: 1, ModeName: "bipolar", Line: 5},
			{Name: "w", Width: 1, Direction: Input, Mode: 2, ModeName: "unipolar", Line: 6},
		},
		Outputs: []Port{
			{Name: "prod_b", Width: 1, Direction: Output, Mode: 1, ModeName: "bipolar", Line: 7},
			{Name: "avg", Width: 1, Direction: Output, Mode: 2, ModeName: "unipolar", Line: 8},
		},
	}
	if diff := cmp.Diff(want, mod, ignoreEvents()); diff != "" {
		t.Fatalf("module mismatch (-want +got):\n%s", diff)
	}

	if got := TotalWidth(mod.Inputs); got != 7 {
		t.Errorf("input width = %d, want 7", got)
	}
	for i := 0; i < 3; i++ {
		if !asg.Used(i) {
			t.Errorf("mode %d should be marked used", i)
		}
	}
	if !containsEvent(mod.Events, "a_p and a_m are recognized as a pair 'a'") {
		t.Errorf("missing pair event in %v", mod.Events)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	lines := SplitLines(sampleDescription)
	first, _, err := Classify(lines, defaultAssignment(t))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	second, _, err := Classify(lines, defaultAssignment(t))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("classification is not deterministic:\n%s", diff)
	}
}

func TestClockResetPairs(t *testing.T) {
	tests := []struct {
		name      string
		decl      string
		wantClock string
		wantReset string
		wantDiags int
	}{
		{"clock_then_reset", "input clk, rst", "clk", "rst", 0},
		{"reset_then_clock", "input wire reset, clock", "clock", "reset", 0},
		{"clock_with_unrelated", "input clk, enable", "clk", "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := []string{"module m (", tt.decl, ");"}
			mod, diags, err := Classify(lines, defaultAssignment(t))
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if mod.Clock != tt.wantClock || mod.Reset != tt.wantReset {
				t.Errorf("clock/reset = %q/%q, want %q/%q", mod.Clock, mod.Reset, tt.wantClock, tt.wantReset)
			}
			if len(mod.Inputs) != 0 || len(mod.Outputs) != 0 {
				t.Errorf("clock and reset must not become ports: %+v %+v", mod.Inputs, mod.Outputs)
			}
			if len(diags) != tt.wantDiags {
				t.Errorf("diagnostics = %v, want %d", diags, tt.wantDiags)
			}
		})
	}
}

func TestMultiBitClockNameIsAPort(t *testing.T) {
	lines := []string{"module m (", "input clk,", "input [3:0] clk_div,", ");"}
	mod, _, err := Classify(lines, defaultAssignment(t))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if mod.Clock != "clk" || len(mod.Inputs) != 1 || mod.Inputs[0].Name != "clk_div" {
		t.Fatalf("unexpected module %+v", mod)
	}
}

func TestDuplicateClockOverrides(t *testing.T) {
	lines := []string{"module m (", "input clk_a,", "input clk_b,", ");"}
	mod, diags, err := Classify(lines, defaultAssignment(t))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if mod.Clock != "clk_b" {
		t.Errorf("clock = %q, want clk_b", mod.Clock)
	}
	if diags.Count(diag.Port) != 1 || diags[0].Line != 3 {
		t.Errorf("expected one override diagnostic on line 3, got %v", diags)
	}
}

func TestFirstModuleHeaderWins(t *testing.T) {
	lines := []string{"module first (", "input clk", ");", "endmodule", "module second (", ");"}
	mod, _, err := Classify(lines, defaultAssignment(t))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if mod.Name != "first" {
		t.Errorf("module = %q, want first", mod.Name)
	}
}

func TestFatalConditions(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  error
	}{
		{"no_module", []string{"input clk,", "output y"}, ErrNoModule},
		{"no_clock", []string{"module m (", "input rst,", "input [1:0] a", ");"}, ErrNoClock},
		{"clock_is_bus", []string{"module m (", "input [1:0] clk", ");"}, ErrNoClock},
		{"clock_is_output", []string{"module m (", "output clk", ");"}, ErrNoClock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Classify(tt.lines, defaultAssignment(t))
			var ce *ClassificationError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ClassificationError, got %v", err)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPairScenario(t *testing.T) {
	reg, err := modes.New([]modes.Mode{
		{Name: "pm", Postfix: []string{"p", "m"}, Minimum: -1, Maximum: 1},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	lines := []string{"module m (", "input clk,", "output [1:0] foo_p, foo_m", ");"}
	mod, diags, err := Classify(lines, reg.NewAssignment())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}
	want := []Port{{Name: "foo", Width: 2, Direction: Output, Mode: 0, ModeName: "pm", Pair: []string{"foo_p", "foo_m"}, Line: 3}}
	if diff := cmp.Diff(want, mod.Outputs); diff != "" {
		t.Fatalf("outputs mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistryOrderBeatsSpecificity(t *testing.T) {
	reg, err := modes.New([]modes.Mode{
		{Name: "single", Postfix: []string{"_a"}},
		{Name: "paired", Postfix: []string{"_a", "_b"}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	asg := reg.NewAssignment()
	mod, _, err := Classify([]string{"module m (", "input clk,", "input sig_a", ");"}, asg)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(mod.Inputs) != 1 || mod.Inputs[0].ModeName != "single" || mod.Inputs[0].Paired() {
		t.Fatalf("sig_a should match the single-postfix mode, got %+v", mod.Inputs)
	}

	asg = reg.NewAssignment()
	mod, diags, err := Classify([]string{"module m (", "input clk,", "input x_a, x_b", ");"}, asg)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(mod.Inputs) != 1 || mod.Inputs[0].Name != "x_a" || mod.Inputs[0].ModeName != "single" {
		t.Fatalf("x_a should match the earlier single-postfix mode, got %+v", mod.Inputs)
	}
	if len(diags) != 1 || !strings.Contains(diags[0].Message, "x_b is ignored") {
		t.Errorf("expected x_b to be reported as ignored, got %v", diags)
	}
	if asg.Used(1) {
		t.Errorf("paired mode must stay unused")
	}
}

func TestUnmatchedPortDropped(t *testing.T) {
	reg, err := modes.New([]modes.Mode{
		{Name: "bipolar", Postfix: []string{"_b"}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	asg := reg.NewAssignment()
	lines := []string{"module m (", "input clk,", "input x,", "output y_b", ");"}
	mod, diags, err := Classify(lines, asg)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(mod.Inputs) != 0 || len(mod.Outputs) != 1 {
		t.Fatalf("x should be dropped: %+v", mod)
	}
	if len(diags) != 1 || diags[0].Line != 3 || diags[0].Kind != diag.Port {
		t.Errorf("expected one port diagnostic on line 3, got %v", diags)
	}
}

func TestMismatchedPairFallsThrough(t *testing.T) {
	asg := defaultAssignment(t)
	lines := []string{"module m (", "input clk,", "input a_p, b_m", ");"}
	mod, diags, err := Classify(lines, asg)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(mod.Inputs) != 1 || mod.Inputs[0].Name != "a_p" || mod.Inputs[0].ModeName != "unipolar" {
		t.Fatalf("expected a_p to fall through to the default mode, got %+v", mod.Inputs)
	}
	if len(diags) != 1 || !strings.Contains(diags[0].Message, "b_m is ignored") {
		t.Errorf("expected b_m ignored diagnostic, got %v", diags)
	}
}

func TestBadRangeIsDiagnosed(t *testing.T) {
	lines := []string{"module m (", "input clk,", "input [0-3:0] neg", ");"}
	mod, diags, err := Classify(lines, defaultAssignment(t))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(mod.Inputs) != 0 || len(diags) != 1 {
		t.Fatalf("expected neg to be dropped with one diagnostic, got %+v %v", mod.Inputs, diags)
	}
}

func containsEvent(events []string, want string) bool {
	for _, e := range events {
		if e == want {
			return true
		}
	}
	return false
}

func TestResetMatchesSubstringOfName(t *testing.T) {
	// "first" contains r..s..t, so a single-bit input named first_b is taken
	// for a reset and replaces the one declared before it.
	lines := SplitLines(`module m (
    input clk, rst_n,
    input first_b,
    input [1:0] x_b,
    output y_b
);
endmodule
`)
	mod, diags, err := Classify(lines, defaultAssignment(t))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if mod.Reset != "first_b" {
		t.Errorf("reset = %q, want first_b", mod.Reset)
	}
	for _, p := range mod.Inputs {
		if p.Name == "first_b" {
			t.Errorf("first_b must not also be a data input")
		}
	}
	if len(diags) != 1 || diags[0].Kind != diag.Port || diags[0].Message != "reset first_b overrides rst_n" || diags[0].Line != 3 {
		t.Fatalf("expected override diagnostic on line 3, got %v", diags)
	}
}
