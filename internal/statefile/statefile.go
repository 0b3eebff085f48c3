// Package statefile loads the initial state of a store from a file.
//
// Two formats are understood, chosen by extension:
//
//	state.json   a JSON object
//	state.hcl    top-level HCL attributes
//
// An HCL state file looks like:
//
//	count = 0
//	title = "hello"
//	tags  = ["a", "b"]
//	owner = { name = "ada", admin = true }
//
// Numbers are decoded as float64, lists and tuples as []any, and objects and
// maps as map[string]any in both formats.
package statefile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ErrUnsupportedFormat is returned for files that are neither .json nor .hcl.
var ErrUnsupportedFormat = errors.New("statefile: unsupported format")

// Load reads the state file at path.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("statefile: %w", err)
	}
	return Decode(path, data)
}

// Decode parses data in the format implied by filename's extension.
func Decode(filename string, data []byte) (map[string]any, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return decodeJSON(filename, data)
	case ".hcl":
		return decodeHCL(filename, data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
	}
}

func decodeJSON(filename string, data []byte) (map[string]any, error) {
	var state map[string]any
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("statefile: parse %s: %w", filename, err)
	}
	if state == nil {
		return nil, fmt.Errorf("statefile: %s: top-level value must be an object", filename)
	}
	return state, nil
}

func decodeHCL(filename string, data []byte) (map[string]any, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("statefile: parse %s: %w", filename, diags)
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("statefile: %s: %w", filename, diags)
	}

	state := make(map[string]any, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("statefile: %s: %w", filename, diags)
		}
		native, err := ctyToNative(val)
		if err != nil {
			return nil, fmt.Errorf("statefile: %s: attribute %q: %w", filename, name, err)
		}
		state[name] = native
	}
	return state, nil
}

// ctyToNative recursively converts a cty.Value to its most natural Go
// counterpart.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert number to float64: %w", err)
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		slice := make([]any, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, err
			}
			slice = append(slice, native)
		}
		return slice, nil

	case ty.IsObjectType() || ty.IsMapType():
		m := make(map[string]any)
		it := v.ElementIterator()
		for it.Next() {
			key, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
			}
			m[key.AsString()] = native
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unsupported type %s", ty.FriendlyName())
	}
}
