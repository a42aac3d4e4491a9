package reconcile

import (
	"time"

	"github.com/machinemap/machinemap/pkg/machines"
)

// Result is the outcome of one reconciliation run.
type Result struct {
	// Merged is the updated server dataset.
	Merged *machines.Collection

	// ProblemSet holds the anomalies collected during the run.
	ProblemSet *machines.Collection

	// Changed counts every stored record mutated during the run,
	// including URL backfills.
	Changed int

	// New counts freshly inserted machines plus reactivated ones.
	New int

	// Retired counts machines transitioned to retired.
	Retired int

	// Areas is the number of areas reconciled.
	Areas int

	// Rows is the number of listing rows processed.
	Rows int

	// Persisted reports whether the persist step ran (false on dry runs).
	Persisted bool

	// Timing of the run.
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Problems returns the number of collected anomalies.
func (r *Result) Problems() int {
	if r.ProblemSet == nil {
		return 0
	}
	return r.ProblemSet.Len()
}
