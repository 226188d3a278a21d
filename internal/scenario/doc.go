// Package scenario implements the state store: the single writer of the
// scenario document.
//
// A Store wraps a Repository and persists the full document after every
// mutating call, so callers can inspect intermediate state between modules
// and a crash never loses more than the in-flight operation.
//
// Reads never fail: a missing or unparseable persisted document is treated
// as "no state". Writes are restricted to the inputs, derived and receipts
// namespaces; module_status and hashes change only through SetModuleStatus
// and StoreHash.
package scenario
