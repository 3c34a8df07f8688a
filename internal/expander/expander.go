// Package expander replaces BITPACK_ directive lines in template sources
// with emitter output and copies every other line through unchanged.
package expander

import (
	"fmt"
	"io/fs"
	"regexp"
	"strings"

	"github.com/robert-at-pretension-io/bitpack-gen/internal/diag"
	"github.com/robert-at-pretension-io/bitpack-gen/internal/emitter"
)

// Marker prefixes every directive keyword.
const Marker = "BITPACK"

// Pattern: <indent># BITPACK_<KEYWORD>  or  <indent>// BITPACK_<KEYWORD>
var directivePattern = regexp.MustCompile(`^(?P<indent>[ \t]*)(?P<comment>#|//)\s*` + Marker + `_(?P<keyword>[A-Z_]+)`)

// Directive is a matched placeholder line.
type Directive struct {
	Indent  string
	Comment string
	Keyword string
}

// MatchDirective returns the directive on line, if any.
func MatchDirective(line string) (Directive, bool) {
	m := directivePattern.FindStringSubmatch(line)
	if m == nil {
		return Directive{}, false
	}
	return Directive{
		Indent:  m[directivePattern.SubexpIndex("indent")],
		Comment: m[directivePattern.SubexpIndex("comment")],
		Keyword: m[directivePattern.SubexpIndex("keyword")],
	}, true
}

// Output is one rendered template.
type Output struct {
	Name    string
	Content []byte
}

// Expander renders an ordered list of templates against one emitter input.
type Expander struct {
	Templates fs.FS
	Names     []string
	Input     *emitter.Input
}

// New creates an Expander.
func New(templates fs.FS, names []string, in *emitter.Input) *Expander {
	return &Expander{Templates: templates, Names: names, Input: in}
}

// ExpandAll renders every template in order. Nothing is written; callers
// decide what to do with the outputs once all of them rendered.
func (e *Expander) ExpandAll() ([]Output, diag.List, error) {
	if err := e.Input.Ready(); err != nil {
		return nil, nil, err
	}
	var outs []Output
	var diags diag.List
	for _, name := range e.Names {
		src, err := fs.ReadFile(e.Templates, name)
		if err != nil {
			return nil, diags, fmt.Errorf("reading template %s: %w", name, err)
		}
		content, d := Expand(name, src, e.Input)
		diags = append(diags, d...)
		outs = append(outs, Output{Name: name, Content: content})
	}
	return outs, diags, nil
}

// Expand renders a single template. Unknown keywords are kept along with a
// marker comment and reported as directive diagnostics.
func Expand(name string, src []byte, in *emitter.Input) ([]byte, diag.List) {
	var b strings.Builder
	var diags diag.List

	for i, line := range strings.SplitAfter(string(src), "\n") {
		if line == "" {
			continue
		}
		d, ok := MatchDirective(line)
		if !ok {
			b.WriteString(line)
			continue
		}

		emit, ok := emitter.Lookup(d.Keyword)
		if !ok {
			diags.Addf(diag.Directive, name, i+1, "unknown keyword %s_%s, skipped (known: %s)", Marker, d.Keyword, knownKeywords())
			fmt.Fprintf(&b, "%s%s %s: unknown keyword %s_%s, skipped\n", d.Indent, d.Comment, Marker, Marker, d.Keyword)
			b.WriteString(line)
			continue
		}
		for _, out := range emit(d.Indent, in) {
			b.WriteString(out)
			b.WriteByte('\n')
		}
	}
	return []byte(b.String()), diags
}

func knownKeywords() string {
	var names []string
	for _, k := range emitter.Keywords() {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}
