// Package diag carries the non-fatal findings a generation run accumulates.
package diag

import "fmt"

// Kind groups diagnostics by the pass that raised them.
type Kind string

const (
	// Port diagnostics come from the classifier: unmatched ports, ignored
	// co-declared names, overridden clock or reset signals.
	Port Kind = "port"
	// Directive diagnostics come from template expansion.
	Directive Kind = "directive"
)

// Diagnostic is a warning that never stops the pass that produced it.
type Diagnostic struct {
	Kind    Kind   `json:"kind"`
	Source  string `json:"source,omitempty"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Source != "" {
		return fmt.Sprintf("%s:%d: %s", d.Source, d.Line, d.Message)
	}
	return fmt.Sprintf("line %d: %s", d.Line, d.Message)
}

// List accumulates diagnostics in the order they were raised.
type List []Diagnostic

// Addf appends a formatted diagnostic.
func (l *List) Addf(kind Kind, source string, line int, format string, args ...interface{}) {
	*l = append(*l, Diagnostic{
		Kind:    kind,
		Source:  source,
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	})
}

// Count returns how many diagnostics have the given kind.
func (l List) Count(kind Kind) int {
	n := 0
	for _, d := range l {
		if d.Kind == kind {
			n++
		}
	}
	return n
}
