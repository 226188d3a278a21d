package ir

// Status is a module lifecycle state.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusRunning Status = "RUNNING"
	StatusOK      Status = "OK"
	StatusWarn    Status = "WARN"
	StatusFail    Status = "FAIL"
	StatusSkip    Status = "SKIP"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusRunning, StatusOK, StatusWarn, StatusFail, StatusSkip}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusOK, StatusWarn, StatusFail, StatusSkip:
		return true
	}
	return false
}

// IsTerminal reports whether s ends a module's pass.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusOK, StatusWarn, StatusFail, StatusSkip:
		return true
	}
	return false
}

// CanTransition reports whether a module may move from s to next within a
// pass. Any state may be re-seeded to PENDING by a fresh pass, and any
// terminal state may still become FAIL when a fault is found after it was
// recorded.
func (s Status) CanTransition(next Status) bool {
	if next == StatusPending {
		return s.Valid()
	}
	switch {
	case s == StatusPending:
		return next == StatusRunning
	case s == StatusRunning:
		return next.IsTerminal()
	case s.IsTerminal():
		return next == StatusFail
	}
	return false
}
