package ir

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrInvalidPath is returned for empty paths, empty segments, segments
	// not in Unicode NFC and unknown namespaces.
	ErrInvalidPath = errors.New("invalid path")

	// ErrReadOnlyPath is returned when a write targets a namespace owned by
	// the orchestrator (engine, timestamps, module_status, hashes).
	ErrReadOnlyPath = errors.New("path is not writable")
)

// SplitPath splits a dotted path and checks its namespace.
func SplitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segs := strings.Split(path, ".")
	for _, seg := range segs {
		if seg == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
		// Canonical JSON keeps keys byte for byte, so an NFD segment would
		// address a different key than the NFC spelling users type.
		if !norm.NFC.IsNormalString(seg) {
			return nil, fmt.Errorf("%w: segment %q is not NFC normalized", ErrInvalidPath, seg)
		}
	}
	switch segs[0] {
	case NSEngine, NSCreatedAt, NSUpdatedAt, NSInputs, NSDerived, NSModuleStatus, NSHashes, NSReceipts:
		return segs, nil
	}
	return nil, fmt.Errorf("%w: unknown namespace %q in %q", ErrInvalidPath, segs[0], path)
}

// Writable reports whether path may be targeted by Assign.
func Writable(path string) error {
	segs, err := SplitPath(path)
	if err != nil {
		return err
	}
	switch segs[0] {
	case NSInputs, NSDerived, NSReceipts:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrReadOnlyPath, path)
}

// Lookup resolves a dotted path. The second result is false when any
// segment is missing or walks into a non-container value.
//
// Under hashes the remainder of the path is the hash name itself, so
// "hashes.derived.a" reads hashes["derived.a"].
func (s *Scenario) Lookup(path string) (any, bool) {
	segs, err := SplitPath(path)
	if err != nil {
		return nil, false
	}

	switch segs[0] {
	case NSInputs:
		return walk(s.Inputs, segs[1:])
	case NSDerived:
		return walk(s.Derived, segs[1:])
	case NSReceipts:
		return walk(s.Receipts, segs[1:])
	case NSHashes:
		if len(segs) == 1 {
			return normalizedWalk(s.Hashes, nil)
		}
		digest, ok := s.Hashes[strings.Join(segs[1:], ".")]
		if !ok {
			return nil, false
		}
		return digest, true
	case NSModuleStatus:
		return normalizedWalk(s.ModuleStatus, segs[1:])
	case NSEngine:
		return normalizedWalk(s.Engine, segs[1:])
	case NSCreatedAt:
		return normalizedWalk(s.CreatedAt, segs[1:])
	default:
		return normalizedWalk(s.UpdatedAt, segs[1:])
	}
}

func normalizedWalk(v any, segs []string) (any, bool) {
	tree, err := Normalize(v)
	if err != nil {
		return nil, false
	}
	return walk(tree, segs)
}

func walk(root any, segs []string) (any, bool) {
	cur := root
	for _, seg := range segs {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Assign writes value at path, creating intermediate objects and replacing
// any non-object value found on the way. The value is normalized first.
//
// Every stored hash that certifies path, one of its ancestors, or one of its
// descendants is dropped, since the value it covered has changed.
func (s *Scenario) Assign(path string, value any) error {
	if err := Writable(path); err != nil {
		return err
	}
	segs, _ := SplitPath(path)

	tree, err := Normalize(value)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}

	s.ensureMaps()
	if len(segs) == 1 {
		obj, ok := tree.(map[string]any)
		if !ok {
			return fmt.Errorf("set %s: namespace must be an object, got %T", path, tree)
		}
		switch segs[0] {
		case NSInputs:
			s.Inputs = obj
		case NSDerived:
			s.Derived = obj
		case NSReceipts:
			s.Receipts = obj
		}
		s.dropHashes(path)
		return nil
	}

	var cur map[string]any
	switch segs[0] {
	case NSInputs:
		cur = s.Inputs
	case NSDerived:
		cur = s.Derived
	case NSReceipts:
		cur = s.Receipts
	}
	for _, seg := range segs[1 : len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = tree

	s.dropHashes(path)
	return nil
}

func (s *Scenario) dropHashes(path string) {
	for name := range s.Hashes {
		if name == path || strings.HasPrefix(name, path+".") || strings.HasPrefix(path, name+".") {
			delete(s.Hashes, name)
		}
	}
}
