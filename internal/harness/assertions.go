package harness

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/roach88/abeflag/internal/ir"
)

// check evaluates every expectation of sc against result.
func check(sc *Scenario, result *Result) {
	exp := sc.Expect
	final := result.Final
	last := result.Last()

	if exp.Outcome != "" && last.Outcome != exp.Outcome {
		result.addError("outcome: expected %s, got %s", exp.Outcome, last.Outcome)
	}
	if exp.HaltedAt != "" && last.HaltedAt != exp.HaltedAt {
		result.addError("halted_at: expected %q, got %q", exp.HaltedAt, last.HaltedAt)
	}

	for _, key := range ir.SortedKeys(exp.Status) {
		entry, ok := final.ModuleStatus[key]
		if !ok {
			result.addError("status.%s: module has no status", key)
			continue
		}
		if string(entry.Status) != exp.Status[key] {
			result.addError("status.%s: expected %s, got %s (%s)", key, exp.Status[key], entry.Status, entry.Notes)
		}
	}

	for _, key := range ir.SortedKeys(exp.NotesContain) {
		entry := final.ModuleStatus[key]
		if !strings.Contains(entry.Notes, exp.NotesContain[key]) {
			result.addError("notes.%s: %q does not contain %q", key, entry.Notes, exp.NotesContain[key])
		}
	}

	for _, key := range ir.SortedKeys(exp.Derived) {
		got, ok := final.Lookup(ir.NSDerived + "." + key)
		if !ok {
			result.addError("derived.%s: not present", key)
			continue
		}
		if !sameJSON(exp.Derived[key], got) {
			result.addError("derived.%s: expected %s, got %s", key, canonical(exp.Derived[key]), canonical(got))
		}
	}

	for _, name := range exp.HashesPresent {
		if _, ok := final.Hashes[name]; !ok {
			result.addError("hashes: expected an entry for %s", name)
		}
	}
	for _, name := range exp.HashesAbsent {
		if _, ok := final.Hashes[name]; ok {
			result.addError("hashes: unexpected entry for %s", name)
		}
	}

	for _, name := range ir.SortedKeys(exp.Calls) {
		if got := result.Calls[name]; got != exp.Calls[name] {
			result.addError("calls.%s: expected %d, got %d", name, exp.Calls[name], got)
		}
	}

	if sc.StableReceipt {
		first := result.Passes[0].ReceiptHash
		for i, p := range result.Passes[1:] {
			if p.ReceiptHash != first {
				result.addError("stable_receipt: pass %d receipt %s differs from pass 1 receipt %s", i+2, p.ReceiptHash, first)
			}
		}
	}
}

// sameJSON compares two values by canonical JSON, so YAML ints and stored
// json.Numbers compare equal.
func sameJSON(a, b any) bool {
	ca, err := ir.MarshalCanonical(a)
	if err != nil {
		return false
	}
	cb, err := ir.MarshalCanonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ca, cb)
}

func canonical(v any) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
