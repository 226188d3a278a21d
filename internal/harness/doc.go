// Package harness runs declarative orchestration scenarios against the real
// engine.
//
// A scenario is a YAML file with an inline manifest, seed inputs, scripted
// runners, and expectations about the final scenario document:
//
//	name: optional-skip
//	description: optional module with a missing input is skipped
//	manifest:
//	  firing_order: [c, d]
//	  modules:
//	    c: {requires: [inputs.z], produces: [derived.c], runner: C}
//	    d: {required: true, produces: [derived.d], runner: D}
//	runners:
//	  C: {returns: 1}
//	  D: {returns: {ok: true}}
//	expect:
//	  status: {c: SKIP, d: OK}
//	  notes_contain: {c: inputs.z}
//	  calls: {C: 0, D: 1}
//
// Each scenario runs on a fresh in-memory repository with a frozen clock
// and sequential pass ids, so the audit certificate is byte-for-byte
// reproducible. RunWithGolden compares it with testdata/golden/<name>.golden.
//
// Scripted runners sit next to the built-in runners (static, copy, merge,
// digest, files, fail), which manifests may reference directly.
package harness
