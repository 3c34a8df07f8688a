// Package classifier recognizes the module header and port declarations of a
// hand-written circuit description and sorts every port into clock, reset,
// or a mode-tagged input/output.
package classifier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robert-at-pretension-io/bitpack-gen/internal/diag"
	"github.com/robert-at-pretension-io/bitpack-gen/internal/modes"
)

// Direction of a port.
type Direction string

const (
	Input  Direction = "input"
	Output Direction = "output"
)

// Port is a classified input or output.
type Port struct {
	// Name is the declared name, or the shared base name of a pair
	Name      string    `json:"name"`
	Width     int       `json:"width"`
	Direction Direction `json:"direction"`
	// Mode indexes the registry the port was classified against
	Mode     int      `json:"-"`
	ModeName string   `json:"mode"`
	Pair     []string `json:"pair,omitempty"`
	Line     int      `json:"line"`
}

// Paired reports whether the port is a differential pair.
func (p Port) Paired() bool {
	return len(p.Pair) == 2
}

// Module is the recognized circuit.
type Module struct {
	Name    string `json:"name"`
	Clock   string `json:"clock"`
	Reset   string `json:"reset,omitempty"`
	Inputs  []Port `json:"inputs"`
	Outputs []Port `json:"outputs"`
	// Events is the detection report, one entry per recognition step
	Events []string `json:"-"`
}

// HasReset reports whether a reset signal was detected.
func (m *Module) HasReset() bool {
	return m.Reset != ""
}

// TotalWidth sums the widths of ports.
func TotalWidth(ports []Port) int {
	total := 0
	for _, p := range ports {
		total += p.Width
	}
	return total
}

var (
	ErrNoModule = errors.New("module is not detected")
	ErrNoClock  = errors.New("clock input is not detected")
)

// ClassificationError is a fatal classification failure.
type ClassificationError struct {
	Source string
	Err    error
}

func (e *ClassificationError) Error() string {
	if e.Source == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// Classifier sorts declarations of one description against a registry.
// Modes that ports resolve to are marked in the Assignment.
type Classifier struct {
	// Source names the description in diagnostics
	Source string

	asg    *modes.Assignment
	module *Module
	diags  diag.List
	line   int
}

// New creates a classifier that records mode usage in asg.
func New(asg *modes.Assignment) *Classifier {
	return &Classifier{asg: asg}
}

// Classify is a convenience wrapper around New(asg).Classify(lines).
func Classify(lines []string, asg *modes.Assignment) (*Module, diag.List, error) {
	return New(asg).Classify(lines)
}

// SplitLines splits text into lines without their terminators.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Classify processes the description one line at a time. It fails with a
// ClassificationError when no module header or no clock input is found;
// everything else it cannot use becomes a port diagnostic.
func (c *Classifier) Classify(lines []string) (*Module, diag.List, error) {
	c.module = &Module{}
	c.diags = nil

	for i, raw := range lines {
		c.line = i + 1
		line := stripComment(raw)

		if name, ok := matchModule(line); ok {
			if c.module.Name == "" {
				c.module.Name = name
				c.event("detected module %s", name)
			} else {
				c.event("module %s is ignored, already generating for %s", name, c.module.Name)
			}
			continue
		}

		decl, ok := matchPort(line)
		if !ok {
			continue
		}

		width, err := CalculateWidth(decl.Upper)
		if err != nil {
			c.warnf("%s is dropped: %v", decl.names(), err)
			continue
		}
		c.event("detected %d bit %s: %s", width, decl.Direction, decl.names())

		if width == 1 && decl.Direction == Input && c.clockOrReset(decl) {
			continue
		}
		c.classifyPort(decl, width)
	}

	if c.module.Name == "" {
		return nil, c.diags, &ClassificationError{Source: c.Source, Err: ErrNoModule}
	}
	if c.module.Clock == "" {
		return nil, c.diags, &ClassificationError{Source: c.Source, Err: ErrNoClock}
	}
	return c.module, c.diags, nil
}

// clockOrReset handles single-bit inputs named like a clock or reset.
func (c *Classifier) clockOrReset(d declaration) bool {
	switch {
	case isClock(d.First):
		c.setClock(d.First)
		if d.Second != "" {
			if isReset(d.Second) {
				c.setReset(d.Second)
			} else {
				c.warnf("%s is ignored", d.Second)
			}
		}
		return true
	case isReset(d.First):
		c.setReset(d.First)
		if d.Second != "" {
			if isClock(d.Second) {
				c.setClock(d.Second)
			} else {
				c.warnf("%s is ignored", d.Second)
			}
		}
		return true
	}
	return false
}

func (c *Classifier) setClock(name string) {
	if prev := c.module.Clock; prev != "" {
		c.warnf("clock %s overrides %s", name, prev)
	}
	c.module.Clock = name
	c.event("%s is recognized as clock input", name)
}

func (c *Classifier) setReset(name string) {
	if prev := c.module.Reset; prev != "" {
		c.warnf("reset %s overrides %s", name, prev)
	}
	c.module.Reset = name
	c.event("%s is recognized as reset input", name)
}

// classifyPort matches a declaration against the registry in priority order.
// The first satisfying mode wins even when a later one is more specific.
func (c *Classifier) classifyPort(d declaration, width int) {
	reg := c.asg.Registry()
	port := Port{Width: width, Direction: d.Direction, Line: c.line, Mode: -1}

	for i := 0; i < reg.Len(); i++ {
		mode := reg.Mode(i)
		if mode.Paired() {
			base, ok := pairBase(d, mode.Postfix)
			if !ok {
				continue
			}
			port.Name = base
			port.Pair = []string{d.First, d.Second}
			port.Mode = i
			c.event("%s and %s are recognized as a pair '%s'", d.First, d.Second, base)
			break
		}
		if hasSuffixFold(d.First, mode.Postfix[0]) {
			port.Name = d.First
			port.Mode = i
			break
		}
	}

	if port.Mode < 0 {
		if idx, ok := reg.Default(); ok {
			port.Name = d.First
			port.Mode = idx
		}
	}

	if port.Mode < 0 {
		c.warnf("%s matches no mode and is dropped", d.names())
		return
	}
	if !port.Paired() && d.Second != "" {
		c.warnf("%s is ignored", d.Second)
	}

	mode := reg.Mode(port.Mode)
	port.ModeName = mode.Name
	c.asg.MarkUsed(port.Mode)
	c.event("%s is recognized as mode '%s'", port.Name, mode.Name)

	if d.Direction == Input {
		c.module.Inputs = append(c.module.Inputs, port)
	} else {
		c.module.Outputs = append(c.module.Outputs, port)
	}
}

// pairBase returns the shared base name when both declared names carry the
// pair's postfixes.
func pairBase(d declaration, postfix []string) (string, bool) {
	if d.Second == "" {
		return "", false
	}
	if !hasSuffixFold(d.First, postfix[0]) || !hasSuffixFold(d.Second, postfix[1]) {
		return "", false
	}
	base1 := d.First[:len(d.First)-len(postfix[0])]
	base2 := d.Second[:len(d.Second)-len(postfix[1])]
	if base1 != base2 {
		return "", false
	}
	// foo_p/foo_m against postfixes p/m still names the port foo
	base := strings.TrimRight(base1, "_")
	if base == "" {
		return "", false
	}
	return base, true
}

func (c *Classifier) event(format string, args ...interface{}) {
	c.module.Events = append(c.module.Events, fmt.Sprintf(format, args...))
}

func (c *Classifier) warnf(format string, args ...interface{}) {
	c.diags.Addf(diag.Port, c.Source, c.line, format, args...)
}
