// Package emitter turns a classified module into the text fragments that
// replace BITPACK_ directives in templates.
package emitter

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/robert-at-pretension-io/bitpack-gen/internal/classifier"
	"github.com/robert-at-pretension-io/bitpack-gen/internal/modes"
)

// Keyword names a directive: the part after BITPACK_.
type Keyword string

const (
	IOInstances          Keyword = "IO_INSTANCES"
	IODefinitions        Keyword = "IO_DEFINITIONS"
	CircuitInstance      Keyword = "CIRCUIT_INSTANCE"
	ModeParameter        Keyword = "MODE_PARAMETER"
	GeneratorDefinitions Keyword = "GENERATOR_DEFINITIONS"
	CounterDefinitions   Keyword = "COUNTER_DEFINITIONS"
)

// ErrUnassigned is returned by Input.Ready before mode IDs exist.
var ErrUnassigned = errors.New("mode IDs are not assigned")

// Input is everything an emitter may read. Emitters panic unless Ready
// returns nil.
type Input struct {
	Module     *classifier.Module
	Assignment *modes.Assignment
}

// Ready reports whether AssignIDs has run on the input's assignment.
func (in *Input) Ready() error {
	if !in.Assignment.Assigned() {
		return ErrUnassigned
	}
	return nil
}

// modeID returns the ID of a mode a port was classified into.
func modeID(asg *modes.Assignment, idx int) int {
	id, ok := asg.ID(idx)
	if !ok {
		panic(fmt.Sprintf("emitter: mode %d has no ID (assigned=%v)", idx, asg.Assigned()))
	}
	return id
}

// Func emits the lines replacing one directive. Every line starts with
// indent; lines carry no terminator.
type Func func(indent string, in *Input) []string

var table = map[Keyword]Func{
	IOInstances:          ioInstances,
	IODefinitions:        ioDefinitions,
	CircuitInstance:      circuitInstance,
	ModeParameter:        modeParameter,
	GeneratorDefinitions: definitions(modes.ContextGenerator, "gen"),
	CounterDefinitions:   definitions(modes.ContextCounter, "cnt"),
}

// Lookup returns the emitter registered for keyword.
func Lookup(keyword string) (Func, bool) {
	f, ok := table[Keyword(keyword)]
	return f, ok
}

// Keywords returns every registered keyword, sorted.
func Keywords() []Keyword {
	out := make([]Keyword, 0, len(table))
	for k := range table {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type portList struct {
	name  string
	ports []classifier.Port
}

func lists(m *classifier.Module, in, out string) []portList {
	return []portList{{in, m.Inputs}, {out, m.Outputs}}
}

// ioInstances binds each port to its slice of the driver's I/O vectors.
func ioInstances(indent string, in *Input) []string {
	var out []string
	reg := in.Assignment.Registry()
	for _, l := range []struct {
		vname string
		class string
		ports []classifier.Port
	}{
		{"srcs", "Input", in.Module.Inputs},
		{"dsts", "Output", in.Module.Outputs},
	} {
		out = append(out, fmt.Sprintf("%s%s = bpio.BitPack%sVector(%d)",
			indent, l.vname, l.class, classifier.TotalWidth(l.ports)))
		start := 0
		for _, p := range l.ports {
			if p.Width == 1 {
				out = append(out, fmt.Sprintf("%s_%s = %s[%d]", indent, p.Name, l.vname, start))
			} else {
				out = append(out, fmt.Sprintf("%s_%s = %s[%d:%d+1]", indent, p.Name, l.vname, start, start+p.Width-1))
			}
			mode := reg.Mode(p.Mode)
			out = append(out, fmt.Sprintf("%s_%s.setrange(%s, %s)",
				indent, p.Name, formatFloat(mode.Maximum), formatFloat(mode.Minimum)))
			start += p.Width
		}
	}
	return out
}

// ioDefinitions emits the size and mode-tag constants of both port lists.
func ioDefinitions(indent string, in *Input) []string {
	width := in.Assignment.Width()
	out := []string{fmt.Sprintf("%slocalparam mode_width = %d;", indent, width)}
	for _, l := range lists(in.Module, "src", "dst") {
		size := classifier.TotalWidth(l.ports)
		out = append(out, fmt.Sprintf("%slocalparam %s_size = %d;", indent, l.name, size))
		if size == 0 {
			out = append(out, fmt.Sprintf("%slocalparam %s_mode = 1'b0;", indent, l.name))
			continue
		}
		out = append(out, fmt.Sprintf("%slocalparam %s_mode = %d'b%s;",
			indent, l.name, size*width, ModeBits(l.ports, in.Assignment)))
	}
	return out
}

// ModeBits concatenates each port's mode ID, width bits wide, once per port
// bit, first port first.
func ModeBits(ports []classifier.Port, asg *modes.Assignment) string {
	var b strings.Builder
	width := asg.Width()
	for _, p := range ports {
		tag := fmt.Sprintf("%0*b", width, modeID(asg, p.Mode))
		b.WriteString(strings.Repeat(tag, p.Width))
	}
	return b.String()
}

// circuitInstance instantiates the user module inside the wrapper.
func circuitInstance(indent string, in *Input) []string {
	m := in.Module
	out := []string{
		fmt.Sprintf("%s%s user (", indent, m.Name),
		fmt.Sprintf("%s    .%s(CLK),", indent, m.Clock),
	}
	if m.HasReset() {
		out = append(out, fmt.Sprintf("%s    .%s(proc_en),", indent, m.Reset))
	}
	for _, l := range lists(m, "src", "dst") {
		start := 0
		for _, p := range l.ports {
			var slice string
			if p.Width == 1 {
				slice = fmt.Sprintf("[%d]", start)
			} else {
				slice = fmt.Sprintf("[%d:%d]", start+p.Width-1, start)
			}
			if p.Paired() {
				out = append(out,
					fmt.Sprintf("%s    .%s(%s_sn_p%s),", indent, p.Pair[0], l.name, slice),
					fmt.Sprintf("%s    .%s(%s_sn_n%s),", indent, p.Pair[1], l.name, slice))
			} else {
				out = append(out, fmt.Sprintf("%s    .%s(%s_sn_p%s),", indent, p.Name, l.name, slice))
			}
			start += p.Width
		}
	}
	last := len(out) - 1
	out[last] = strings.TrimSuffix(out[last], ",") + ");"
	return out
}

// modeParameter declares the mode-select parameter of a generator or counter.
func modeParameter(indent string, in *Input) []string {
	w := in.Assignment.Width()
	return []string{fmt.Sprintf("%sparameter [%d:0] MODE = %d'd0", indent, w-1, w)}
}

// definitions emits every used mode's snippet for context as an exhaustive
// if / else if / else chain on MODE. A single used mode is emitted bare.
func definitions(context, label string) Func {
	return func(indent string, in *Input) []string {
		asg := in.Assignment
		reg := asg.Registry()
		used := asg.UsedModes()

		if len(used) == 1 {
			var out []string
			for _, line := range reg.Mode(used[0]).Snippet(context) {
				out = append(out, indentLine(indent, line))
			}
			return out
		}

		var out []string
		for k, idx := range used {
			mode := reg.Mode(idx)
			id := modeID(asg, idx)
			name := label + "_" + identifier(mode.Name)
			switch {
			case k == 0:
				out = append(out, fmt.Sprintf("%sif (MODE == %d) begin : %s", indent, id, name))
			case k == len(used)-1:
				out = append(out, fmt.Sprintf("%send else begin : %s", indent, name))
			default:
				out = append(out, fmt.Sprintf("%send else if (MODE == %d) begin : %s", indent, id, name))
			}
			for _, line := range mode.Snippet(context) {
				out = append(out, indentLine(indent+"    ", line))
			}
		}
		if len(used) > 0 {
			out = append(out, indent+"end")
		}
		return out
	}
}

func indentLine(indent, line string) string {
	if line == "" {
		return ""
	}
	return indent + line
}

var nonIdent = regexp.MustCompile(`\W`)

func identifier(name string) string {
	return nonIdent.ReplaceAllString(name, "_")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
