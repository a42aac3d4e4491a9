package lease

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinemap/machinemap/pkg/errors"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "running.tmp")

	l, err := Acquire(path)
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err, "marker file must exist while held")

	require.NoError(t, l.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "marker file must be gone after release")
}

func TestAcquireFailsWhileHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "running.tmp")

	l, err := Acquire(path)
	require.NoError(t, err)
	defer func() { _ = l.Release() }()

	_, err = Acquire(path)
	assert.ErrorIs(t, err, errors.ErrRunInProgress)
}

func TestReleaseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "running.tmp")

	l, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, l.Release())
	require.NoError(t, l.Release())

	var nilLease *Lease
	assert.NoError(t, nilLease.Release())
}
