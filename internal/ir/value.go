package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"
)

// Normalize converts any JSON-serializable Go value into a JSON tree made of
// map[string]any, []any, string, bool, json.Number and nil.
//
// Numbers become json.Number so integers larger than 2^53 and decimal
// literals survive a persist/load cycle unchanged.
func Normalize(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, bool, json.Number:
		return val, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize %T: %w", v, err)
	}
	return DecodeValue(data)
}

// DecodeValue parses JSON into a tree using json.Number for numbers.
func DecodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode value: trailing data after JSON value")
	}
	return out, nil
}

// IsAbsent reports whether v counts as an unresolved dependency.
func IsAbsent(v any, ok bool) bool {
	return !ok || v == nil
}

// SortedKeys returns map keys in RFC 8785 order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
// Go's default string comparison uses UTF-8 which produces a different order
// for characters outside the BMP.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
