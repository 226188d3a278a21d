// Package runner defines the module runner contract and the registry that
// maps manifest runner references to implementations.
//
// A Runner receives a read-only snapshot of the scenario and returns an
// Output; it never writes to the scenario itself. The orchestrator applies
// the Output through the write contract:
//
//   - Multi(writes): each path is written and hashed individually
//   - Single(value) with produces: value is written to produces[0]
//   - Single(value) without produces: value is only hashed under
//     module_output.<key>
//
// Runners are registered by name before a pass starts. Built-in runners
// cover static values, copying, digesting and intake file metadata;
// ProcessRunner executes an allow-listed external command.
package runner
