package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(Closed, Loaded))
	assert.True(t, CanTransition(Loaded, Opened))
	assert.True(t, CanTransition(Opened, Enabled))
	assert.True(t, CanTransition(Enabled, Transferring))
	assert.True(t, CanTransition(Transferring, Opened))
	assert.True(t, CanTransition(Enabled, Opened))
	assert.True(t, CanTransition(Opened, Loaded))
	assert.True(t, CanTransition(Loaded, Closed))

	assert.False(t, CanTransition(Closed, Transferring))
	assert.False(t, CanTransition(Closed, Opened))
	assert.False(t, CanTransition(Loaded, Enabled))
	assert.False(t, CanTransition(Transferring, Enabled))
	assert.False(t, CanTransition(Transferring, Closed))
	assert.False(t, CanTransition(Opened, Opened))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Transferring", Transferring.String())
	assert.Equal(t, "State(9)", State(9).String())
	assert.False(t, State(9).Valid())
	assert.True(t, Closed.Valid())
}
