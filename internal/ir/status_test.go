package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransition(StatusRunning))
	assert.False(t, StatusPending.CanTransition(StatusOK))

	for _, terminal := range []Status{StatusOK, StatusWarn, StatusFail, StatusSkip} {
		assert.True(t, StatusRunning.CanTransition(terminal))
		assert.True(t, terminal.IsTerminal())
		assert.True(t, terminal.CanTransition(StatusPending), "re-seed from %s", terminal)
		assert.False(t, terminal.CanTransition(StatusRunning))
		assert.True(t, terminal.CanTransition(StatusFail), "late fault on %s", terminal)
	}
	assert.False(t, StatusOK.CanTransition(StatusWarn))
	assert.False(t, StatusSkip.CanTransition(StatusOK))
	assert.False(t, StatusPending.CanTransition(StatusFail))

	assert.False(t, StatusRunning.IsTerminal())
	assert.False(t, Status("DONE").Valid())
	assert.False(t, Status("DONE").CanTransition(StatusPending))
}
