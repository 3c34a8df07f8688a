// Package modes holds the mode registry: the ordered, immutable list of
// signal-encoding conventions a port can be classified into, and the per-run
// Assignment table that records which modes a design uses and which ID each
// one receives.
package modes

import (
	"fmt"
	"math/bits"
	"strings"
)

// Snippet contexts understood by Mode.Snippet.
const (
	ContextGenerator = "generator"
	ContextCounter   = "counter"
)

// Mode is one signal-encoding convention. A mode with one postfix matches a
// single-ended port whose name ends in that postfix; a mode with two postfixes
// matches a differential pair declared together.
type Mode struct {
	Name      string   `json:"name" yaml:"name"`
	Postfix   []string `json:"postfix" yaml:"postfix"`
	Default   bool     `json:"default,omitempty" yaml:"default,omitempty"`
	Generator []string `json:"generator,omitempty" yaml:"generator,omitempty"`
	Counter   []string `json:"counter,omitempty" yaml:"counter,omitempty"`
	Minimum   float64  `json:"minimum" yaml:"minimum"`
	Maximum   float64  `json:"maximum" yaml:"maximum"`
}

// Paired reports whether the mode describes a differential pair.
func (m Mode) Paired() bool {
	return len(m.Postfix) == 2
}

// Snippet returns the code lines for the given generation context.
func (m Mode) Snippet(context string) []string {
	switch context {
	case ContextGenerator:
		return m.Generator
	case ContextCounter:
		return m.Counter
	}
	return nil
}

// ConfigError reports malformed registry data. It is fatal and always raised
// before classification starts.
type ConfigError struct {
	Source string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("mode registry: %v", e.Err)
	}
	return fmt.Sprintf("mode registry %s: %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Registry is the ordered list of modes. Order is matching priority.
// A Registry is never mutated after New returns, so one instance may back any
// number of concurrent runs, each with its own Assignment.
type Registry struct {
	modes      []Mode
	defaultIdx int
}

// New builds a registry from modes in priority order.
func New(modes []Mode) (*Registry, error) {
	reg := &Registry{defaultIdx: -1}
	seen := make(map[string]bool, len(modes))
	for i, m := range modes {
		if m.Name == "" {
			return nil, &ConfigError{Err: fmt.Errorf("mode #%d has no name", i)}
		}
		if seen[m.Name] {
			return nil, &ConfigError{Err: fmt.Errorf("mode %q declared twice", m.Name)}
		}
		seen[m.Name] = true
		if n := len(m.Postfix); n < 1 || n > 2 {
			return nil, &ConfigError{Err: fmt.Errorf("mode %q needs one or two postfixes, has %d", m.Name, n)}
		}
		if m.Minimum > m.Maximum {
			return nil, &ConfigError{Err: fmt.Errorf("mode %q has minimum %g above maximum %g", m.Name, m.Minimum, m.Maximum)}
		}
		if m.Default {
			if reg.defaultIdx >= 0 {
				return nil, &ConfigError{Err: fmt.Errorf("modes %q and %q are both flagged default",
					modes[reg.defaultIdx].Name, m.Name)}
			}
			reg.defaultIdx = i
		}
		reg.modes = append(reg.modes, cloneMode(m))
	}
	return reg, nil
}

func cloneMode(m Mode) Mode {
	m.Postfix = append([]string(nil), m.Postfix...)
	m.Generator = append([]string(nil), m.Generator...)
	m.Counter = append([]string(nil), m.Counter...)
	return m
}

// Len returns the number of modes.
func (r *Registry) Len() int {
	return len(r.modes)
}

// Mode returns the mode at index i.
func (r *Registry) Mode(i int) Mode {
	return r.modes[i]
}

// Modes returns a copy of the modes in priority order.
func (r *Registry) Modes() []Mode {
	out := make([]Mode, len(r.modes))
	copy(out, r.modes)
	return out
}

// Default returns the index of the default mode, if any.
func (r *Registry) Default() (int, bool) {
	return r.defaultIdx, r.defaultIdx >= 0
}

// String lists the modes as name[postfixes].
func (r *Registry) String() string {
	var parts []string
	for _, m := range r.modes {
		s := m.Name + "[" + strings.Join(m.Postfix, ",") + "]"
		if m.Default {
			s += "*"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

// WidthBits returns the number of bits needed to hold IDs 0..used-1,
// never less than one.
func WidthBits(used int) int {
	if used <= 1 {
		return 1
	}
	return bits.Len(uint(used - 1))
}
