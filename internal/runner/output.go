package runner

import "maps"

// Kind tells the orchestrator which write interpretation applies.
type Kind int

const (
	// KindSingle is one value for produces[0], or for module_output.<key>
	// when the module declares no produces.
	KindSingle Kind = iota
	// KindMulti is a set of independent path writes.
	KindMulti
)

func (k Kind) String() string {
	if k == KindMulti {
		return "multi"
	}
	return "single"
}

// Output is the tagged result of a Runner. The zero Output is Single(nil).
type Output struct {
	kind   Kind
	value  any
	writes map[string]any
}

// Single wraps one value.
func Single(v any) Output {
	return Output{kind: KindSingle, value: v}
}

// Multi wraps several path writes. Paths are dotted scenario paths inside
// inputs or derived.
func Multi(writes map[string]any) Output {
	return Output{kind: KindMulti, writes: maps.Clone(writes)}
}

// Kind reports which interpretation applies.
func (o Output) Kind() Kind {
	return o.kind
}

// Value returns the single value. It is nil for Multi outputs.
func (o Output) Value() any {
	return o.value
}

// Writes returns the path writes. It is nil for Single outputs.
func (o Output) Writes() map[string]any {
	return o.writes
}
