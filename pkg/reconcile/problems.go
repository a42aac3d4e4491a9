package reconcile

import (
	"github.com/machinemap/machinemap/pkg/logging"
	"github.com/machinemap/machinemap/pkg/machines"
)

// Problems accumulates anomalies into a side dataset instead of failing
// the run. A problem entry is never auto-resolved: it stays until an
// operator either fixes the underlying data or adds the link to the skip
// list.
type Problems struct {
	collection *machines.Collection

	// known holds links already present in the previous problem set, to
	// damp repeated log noise across runs.
	known map[string]bool

	// skip is the operator-maintained allow-list of links the engine
	// must never re-evaluate.
	skip map[string]bool
}

// NewProblems creates a collector seeded with the previous problem set and
// the skip list. Both may be nil.
func NewProblems(previous, skip *machines.Collection) *Problems {
	p := &Problems{
		collection: machines.NewCollection(),
		known:      map[string]bool{},
		skip:       map[string]bool{},
	}
	if previous != nil {
		for url := range previous.URLs() {
			p.known[url] = true
		}
	}
	if skip != nil {
		for url := range skip.URLs() {
			p.skip[url] = true
		}
	}
	return p
}

// Skip reports whether the link is on the skip list.
func (p *Problems) Skip(url string) bool {
	return p.skip[url]
}

// Add records an anomaly. The entry is stripped to problem-set shape:
// id unassigned, last_updated sentinel, explanation attached. Already-known
// links log at debug instead of error.
func (p *Problems) Add(rec machines.Record, msg string) {
	rec.ID = machines.UnassignedID
	rec.LastUpdated = machines.None

	f := p.collection.Append(rec)
	f.Problem = msg

	event := logging.Error()
	if p.known[rec.ExternalURL] {
		event = logging.Debug()
	}
	event.Str("machine", rec.Name).Str("area", rec.Area).Msg(msg)
}

// Count returns the number of collected anomalies.
func (p *Problems) Count() int {
	return p.collection.Len()
}

// Collection returns the problem dataset.
func (p *Problems) Collection() *machines.Collection {
	return p.collection
}
