// Package engine implements the orchestrator: one sequential pass over a
// manifest's firing order against the shared scenario document.
//
// PASS ALGORITHM:
//
// A pass re-seeds every manifest module as PENDING, then walks firing_order
// one module at a time:
//  1. status -> RUNNING
//  2. every requires path must resolve to a non-null value
//  3. the runner reference must resolve in the Registry
//  4. the runner is invoked with a private snapshot of the scenario
//  5. its Output is applied through the write contract
//  6. status -> OK
//
// A failure in steps 2-5 is classified as a ModuleError. Required modules
// go to FAIL and halt the pass; everything after them stays PENDING.
// Optional modules go to SKIP when they could not start (steps 2-3) and to
// WARN when they started and failed (steps 4-5), and the pass continues.
//
// After the loop, whether it completed, halted, or was cancelled, the audit
// certificate is stored at receipts.audit_certificate and hashed under the
// same name.
//
// WRITE CONTRACT:
//
// The runner's Output is tagged, never sniffed:
//   - Multi: every path is written and hashed on its own
//   - Single, produces non-empty: the value goes to produces[0] only
//   - Single, no produces: hashed under module_output.<key>, not written
//
// ORDERING:
//
// The engine is the scenario's only writer. Status transitions are stamped
// with a logical seq from Clock and reported to the Observer in order.
// There is no parallel fan-out across modules.
package engine
