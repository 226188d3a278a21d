// Package integrity re-derives every stored hash from the current scenario
// and reports which ones still match.
package integrity

import (
	"github.com/roach88/abeflag/internal/ir"
)

// Result classifies one stored hash.
type Result string

const (
	// Verified: the value at the path hashes to the stored digest.
	Verified Result = "verified"
	// Mismatch: the value changed after it was hashed.
	Mismatch Result = "mismatch"
	// Unresolved: the name does not address a readable value, e.g.
	// module_output.<key>, or the value is gone.
	Unresolved Result = "unresolved"
)

// Entry is the check of one hashes[name].
type Entry struct {
	Name     string `json:"name"`
	Result   Result `json:"result"`
	Stored   string `json:"stored"`
	Computed string `json:"computed,omitempty"`
}

// Report lists every entry in RFC 8785 key order.
type Report struct {
	Algorithm  string  `json:"algorithm"`
	Entries    []Entry `json:"entries"`
	Verified   int     `json:"verified"`
	Mismatched int     `json:"mismatched"`
	Unresolved int     `json:"unresolved"`
}

// OK reports whether no stored hash contradicts the current state.
func (r Report) OK() bool {
	return r.Mismatched == 0
}

// Verify recomputes every hash in view with hasher.
func Verify(view *ir.Scenario, hasher ir.Hasher) Report {
	report := Report{Algorithm: string(hasher.Algorithm()), Entries: []Entry{}}
	for _, name := range ir.SortedKeys(view.Hashes) {
		entry := Entry{Name: name, Stored: view.Hashes[name]}
		value, ok := resolve(view, name)
		if !ok {
			entry.Result = Unresolved
			report.Unresolved++
			report.Entries = append(report.Entries, entry)
			continue
		}
		digest, err := hasher.Hash(value)
		if err != nil {
			entry.Result = Unresolved
			report.Unresolved++
			report.Entries = append(report.Entries, entry)
			continue
		}
		entry.Computed = digest
		if digest == entry.Stored {
			entry.Result = Verified
			report.Verified++
		} else {
			entry.Result = Mismatch
			report.Mismatched++
		}
		report.Entries = append(report.Entries, entry)
	}
	return report
}

// resolve reads the value a hash name certifies. Only writable namespaces
// hold hashed values.
func resolve(view *ir.Scenario, name string) (any, bool) {
	if err := ir.Writable(name); err != nil {
		return nil, false
	}
	return view.Lookup(name)
}
