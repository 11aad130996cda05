package dirlock_test

import (
	"testing"

	"bitcaskd/internal/dirlock"

	"github.com/stretchr/testify/require"
)

func TestSecondAcquireFails(t *testing.T) {
	dir := t.TempDir()

	lk, ok, err := dirlock.Acquire(dir)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok2, err := dirlock.Acquire(dir)
	require.NoError(t, err)
	require.False(t, ok2)

	require.NoError(t, lk.Release())

	lk2, ok3, err := dirlock.Acquire(dir)
	require.NoError(t, err)
	require.True(t, ok3)
	require.NoError(t, lk2.Release())
}
