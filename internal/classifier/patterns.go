package classifier

import (
	"regexp"
	"strings"
)

var (
	// Pattern: module <name>
	modulePattern = regexp.MustCompile(`\bmodule\s+(?P<name>\w+)`)

	// Pattern: input|output [logic|reg|wire] [[<expr>:0]] <name>[, <name>]
	portPattern = regexp.MustCompile(`\b(?P<dir>in|out)put\s+` +
		`(?:(?P<kind>logic|reg|wire)\b\s*)?` +
		`(?:\[(?P<upper>[()+\-*0-9 ]+):\s*0\s*\]\s*)?` +
		`(?P<first>\w+)(?:\s*,\s*(?P<second>\w+))?`)

	// Pattern: clk, clock, sys_clk, CLK_in ...
	clockPattern = regexp.MustCompile(`(?i)cl(oc)?k`)

	// Pattern: rst, reset, rst_n, RESET ... (unanchored, so "first" matches too)
	resetPattern = regexp.MustCompile(`(?i)re?se?t`)

	// Pattern: // to end of line
	lineCommentPattern = regexp.MustCompile(`//.*`)
)

// declaration is one matched port declaration line.
type declaration struct {
	Direction Direction
	Kind      string
	Upper     string
	First     string
	Second    string
}

// names renders the declared names for reports.
func (d declaration) names() string {
	if d.Second == "" {
		return d.First
	}
	return d.First + " and " + d.Second
}

// stripComment removes a trailing // comment.
func stripComment(line string) string {
	return lineCommentPattern.ReplaceAllString(line, "")
}

// matchModule returns the module name if line is a module header
func matchModule(line string) (string, bool) {
	m := modulePattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[modulePattern.SubexpIndex("name")], true
}

// matchPort returns the declaration if line declares one or two ports
func matchPort(line string) (declaration, bool) {
	m := portPattern.FindStringSubmatch(line)
	if m == nil {
		return declaration{}, false
	}
	d := declaration{
		Kind:   m[portPattern.SubexpIndex("kind")],
		Upper:  strings.TrimSpace(m[portPattern.SubexpIndex("upper")]),
		First:  m[portPattern.SubexpIndex("first")],
		Second: m[portPattern.SubexpIndex("second")],
	}
	if m[portPattern.SubexpIndex("dir")] == "in" {
		d.Direction = Input
	} else {
		d.Direction = Output
	}
	return d, true
}

func isClock(name string) bool {
	return clockPattern.MatchString(name)
}

func isReset(name string) bool {
	return resetPattern.MatchString(name)
}

// hasSuffixFold reports whether name ends in suffix, ignoring case.
func hasSuffixFold(name, suffix string) bool {
	return len(name) >= len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix)
}
