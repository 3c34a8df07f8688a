package modes

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v2"

	"github.com/robert-at-pretension-io/bitpack-gen/internal/validator"
)

//go:embed default_modes.json
var defaultRegistry []byte

// DefaultSource names the embedded registry in errors and logs.
const DefaultSource = "<embedded>"

// Format selects a registry document syntax.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".hcl":
		return FormatHCL, nil
	}
	return "", fmt.Errorf("unsupported registry extension %q (want .json, .yaml, .yml or .hcl)", filepath.Ext(path))
}

// document is the JSON shape every format is converted to.
type document struct {
	Modes []Mode `json:"modes"`
}

// Load reads a registry file, picking the syntax from its extension.
func Load(path string) (*Registry, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, &ConfigError{Source: path, Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mode registry: %w", err)
	}
	return Parse(data, format, path)
}

// LoadDefault returns the embedded registry.
func LoadDefault() (*Registry, error) {
	return Parse(defaultRegistry, FormatJSON, DefaultSource)
}

// DefaultJSON returns the embedded registry document.
func DefaultJSON() []byte {
	return append([]byte(nil), defaultRegistry...)
}

// Parse decodes a registry document. The document is validated against the
// registry schema before any mode is built.
func Parse(data []byte, format Format, source string) (*Registry, error) {
	jsonBytes, err := toJSON(data, format, source)
	if err != nil {
		return nil, &ConfigError{Source: source, Err: err}
	}

	v, err := validator.New()
	if err != nil {
		return nil, err
	}
	if err := v.ValidateJSON(jsonBytes); err != nil {
		return nil, &ConfigError{Source: source, Err: err}
	}

	var doc document
	if err := json.Unmarshal(jsonBytes, &doc); err != nil {
		return nil, &ConfigError{Source: source, Err: fmt.Errorf("decoding modes: %w", err)}
	}

	reg, err := New(doc.Modes)
	if err != nil {
		if ce, ok := err.(*ConfigError); ok {
			ce.Source = source
		}
		return nil, err
	}
	return reg, nil
}

func toJSON(data []byte, format Format, source string) ([]byte, error) {
	switch format {
	case FormatJSON:
		return data, nil
	case FormatYAML:
		return yamlToJSON(data)
	case FormatHCL:
		return hclToJSON(data, source)
	}
	return nil, fmt.Errorf("unknown registry format %q", format)
}

func yamlToJSON(data []byte) ([]byte, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	clean, err := jsonCompatible(raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(clean)
}

// jsonCompatible rewrites the map[interface{}]interface{} values yaml.v2
// produces into string-keyed maps.
func jsonCompatible(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v", k)
			}
			conv, err := jsonCompatible(val)
			if err != nil {
				return nil, err
			}
			out[key] = conv
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			conv, err := jsonCompatible(val)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	}
	return v, nil
}

// hclRegistry is the HCL layout:
//
//	mode "pair" {
//	  postfix = ["_p", "_m"]
//	  minimum = -1
//	  maximum = 1
//	}
type hclRegistry struct {
	Modes []hclMode `hcl:"mode,block"`
}

type hclMode struct {
	Name      string   `hcl:"name,label"`
	Postfix   []string `hcl:"postfix"`
	Default   bool     `hcl:"default,optional"`
	Generator []string `hcl:"generator,optional"`
	Counter   []string `hcl:"counter,optional"`
	Minimum   float64  `hcl:"minimum"`
	Maximum   float64  `hcl:"maximum"`
}

func hclToJSON(data []byte, source string) ([]byte, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, source)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing HCL: %w", diags)
	}

	var reg hclRegistry
	if diags := gohcl.DecodeBody(file.Body, nil, &reg); diags.HasErrors() {
		return nil, fmt.Errorf("decoding HCL: %w", diags)
	}

	doc := document{Modes: make([]Mode, 0, len(reg.Modes))}
	for _, m := range reg.Modes {
		doc.Modes = append(doc.Modes, Mode{
			Name:      m.Name,
			Postfix:   m.Postfix,
			Default:   m.Default,
			Generator: m.Generator,
			Counter:   m.Counter,
			Minimum:   m.Minimum,
			Maximum:   m.Maximum,
		})
	}
	return json.Marshal(doc)
}
