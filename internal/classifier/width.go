package classifier

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// CalculateWidth returns the bit width of a [upper:0] range. An empty upper
// bound means a scalar port of width 1. The bound is a constant arithmetic
// expression such as "(8*2)-1".
func CalculateWidth(upper string) (int, error) {
	if upper == "" {
		return 1, nil
	}

	expr, diags := hclsyntax.ParseExpression([]byte(upper), "range", hcl.Pos{Line: 1, Column: 1, Byte: 0})
	if diags.HasErrors() {
		return 0, fmt.Errorf("parsing range %q: %w", upper, diags)
	}

	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return 0, fmt.Errorf("evaluating range %q: %w", upper, diags)
	}
	if !val.IsKnown() || val.IsNull() || val.Type() != cty.Number {
		return 0, fmt.Errorf("range %q is not a number", upper)
	}

	var msb int
	if err := gocty.FromCtyValue(val, &msb); err != nil {
		return 0, fmt.Errorf("range %q: %w", upper, err)
	}
	if msb < 0 {
		return 0, fmt.Errorf("range %q has negative upper bound %d", upper, msb)
	}
	return msb + 1, nil
}
