// Package lease provides the exclusive run lease for the reconciliation
// job. The lease is a marker file: the request handlers that accept user
// edits wait for it to disappear before touching the backing datasets, so
// the engine must hold it for the whole run and release it on both commit
// and abort.
package lease

import (
	"os"

	"github.com/machinemap/machinemap/pkg/errors"
)

// Lease is an acquired run marker.
type Lease struct {
	path string
}

// Acquire creates the marker file, failing if another run already holds it.
// Creation is O_EXCL, so two concurrent acquirers cannot both succeed.
func Acquire(path string) (*Lease, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.ErrRunInProgress
		}
		return nil, errors.WrapIO("create", path, err)
	}
	_ = f.Close()
	return &Lease{path: path}, nil
}

// Release removes the marker file. Safe to call more than once.
func (l *Lease) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	path := l.path
	l.path = ""
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.WrapIO("delete", path, err)
	}
	return nil
}
