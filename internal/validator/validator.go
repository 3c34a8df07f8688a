package validator

// =============================================================================
// REGISTRY CONTRACT
// =============================================================================
//
// Mode registries arrive as JSON, YAML or HCL. Each loader converts its
// document to JSON and hands it here before a single mode is constructed, so
// a misspelled field or a three-entry postfix list stops the run with a
// message naming the field instead of silently classifying nothing.
// =============================================================================

import (
	"embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed registry_schema.cue
var schemaFS embed.FS

// Validator checks registry documents against the embedded CUE schema.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// New creates a new Validator with the embedded CUE schema
func New() (*Validator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := schemaFS.ReadFile("registry_schema.cue")
	if err != nil {
		return nil, fmt.Errorf("loading embedded schema: %w", err)
	}

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema: %w", schema.Err())
	}

	return &Validator{
		ctx:    ctx,
		schema: schema,
	}, nil
}

// ValidateJSON validates JSON bytes directly against #Registry. Every field
// the schema declares as required must be present and concrete.
func (v *Validator) ValidateJSON(jsonBytes []byte) error {
	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}

	def := v.schema.LookupPath(cue.ParsePath("#Registry"))
	if def.Err() != nil {
		return fmt.Errorf("looking up #Registry definition: %w", def.Err())
	}

	unified := def.Unify(dataValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %s", strings.Join(Messages(err), "; "))
	}

	return nil
}

// Messages flattens a CUE error into one message per failing path.
func Messages(err error) []string {
	var msgs []string
	for _, e := range errors.Errors(err) {
		msgs = append(msgs, e.Error())
	}
	return msgs
}
