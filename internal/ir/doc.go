// Package ir provides the canonical document types for abeflag.
//
// This package contains the scenario document, module status entries, the
// audit certificate, canonical JSON and content hashing. All other internal
// packages import ir; ir imports nothing internal. This keeps ir the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - All JSON tags use snake_case and mirror the persisted document exactly
//   - Values stored in the document are JSON trees (see Normalize); numbers are
//     json.Number so a save/load round trip is lossless
//   - Hashes are computed over MarshalCanonical output, never over json.Marshal
//   - Timestamps are wall-clock UTC; ordering inside a pass uses logical seq
package ir
