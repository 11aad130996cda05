package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunPutGetDel(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")

	require.NoError(t, run([]string{"-preset", "small", "put", dir, "name", "jhon"}))
	require.NoError(t, run([]string{"-preset", "small", "get", dir, "name"}))
	require.NoError(t, run([]string{"-preset", "small", "del", dir, "name"}))

	err := run([]string{"-preset", "small", "get", dir, "name"})
	require.Error(t, err)
}

func TestRunFillThenStatsThenCompact(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")

	require.NoError(t, run([]string{"-preset", "small", "-max-segment-size", "256", "fill", dir, "50", "16"}))
	require.NoError(t, run([]string{"-preset", "small", "stats", dir}))
	require.NoError(t, run([]string{"-preset", "small", "compact", dir}))
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	err := run([]string{"bogus", dir})
	require.Error(t, err)
}

func TestRunRejectsTooFewArgs(t *testing.T) {
	err := run([]string{"put"})
	require.Error(t, err)
}
