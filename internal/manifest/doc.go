// Package manifest loads and validates the declarative description of a
// pass: which modules exist, what each requires and produces, which runner
// implements it, and the total order in which they are attempted.
//
// Manifests may be written as JSON, YAML, CUE or HCL; the format is chosen
// by file extension. CUE manifests are additionally unified with an embedded
// schema. All formats decode to the same Manifest value and go through the
// same Validate rules.
//
// The firing order is taken as given: nothing here sorts modules by their
// dependencies. Lint reports orderings that can never satisfy a dependency.
package manifest
