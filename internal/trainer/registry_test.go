package trainer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_OneRunPerSession(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Begin("s1"))
	assert.ErrorIs(t, r.Begin("s1"), ErrRunActive)

	// A different session is unaffected
	require.NoError(t, r.Begin("s2"))

	r.End("s1")
	assert.NoError(t, r.Begin("s1"))
}

func TestRegistry_StopFlagLifecycle(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Begin("s1"))

	assert.False(t, r.StopRequested("s1"))
	r.RequestStop("s1")
	assert.True(t, r.StopRequested("s1"))

	// End clears the unconsumed flag so the next run starts clean
	r.End("s1")
	require.NoError(t, r.Begin("s1"))
	assert.False(t, r.StopRequested("s1"))
}

func TestRegistry_BeginClearsStaleStop(t *testing.T) {
	r := NewRegistry()

	// Stop requested with no run active must not poison the next run
	r.RequestStop("s1")
	require.NoError(t, r.Begin("s1"))
	assert.False(t, r.StopRequested("s1"))
}

func TestRegistry_IsActive(t *testing.T) {
	r := NewRegistry()

	assert.False(t, r.IsActive("s1"))
	require.NoError(t, r.Begin("s1"))
	assert.True(t, r.IsActive("s1"))
	r.End("s1")
	assert.False(t, r.IsActive("s1"))
}
