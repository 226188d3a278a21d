package scenario

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/roach88/abeflag/internal/ir"
)

// Input decodes inputs.<key> into T. The bool is false when the input is
// absent or null.
func Input[T any](view *ir.Scenario, key string) (T, bool, error) {
	return Value[T](view, ir.NSInputs+"."+key)
}

// Derived decodes derived.<key> into T.
func Derived[T any](view *ir.Scenario, key string) (T, bool, error) {
	return Value[T](view, ir.NSDerived+"."+key)
}

// Value decodes the value at path into T using json field tags.
func Value[T any](view *ir.Scenario, path string) (T, bool, error) {
	var out T
	raw, ok := view.Lookup(path)
	if ir.IsAbsent(raw, ok) {
		return out, false, nil
	}
	if err := Decode(raw, &out); err != nil {
		return out, true, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, true, nil
}

// Decode copies a JSON tree into target, which must be a pointer.
func Decode(raw any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}
