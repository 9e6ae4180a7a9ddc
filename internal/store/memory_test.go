package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok, err := m.Get(ctx, "timer_demo")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "timer_demo", 30))

	seconds, ok, err := m.Get(ctx, "timer_demo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 30, seconds)

	// last writer wins
	require.NoError(t, m.Set(ctx, "timer_demo", 29))
	seconds, _, err = m.Get(ctx, "timer_demo")
	require.NoError(t, err)
	assert.Equal(t, 29, seconds)

	require.NoError(t, m.Delete(ctx, "timer_demo"))
	_, ok, err = m.Get(ctx, "timer_demo")
	require.NoError(t, err)
	assert.False(t, ok)

	// deleting a missing key is a no-op
	require.NoError(t, m.Delete(ctx, "timer_demo"))
}
