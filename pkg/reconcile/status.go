package reconcile

import (
	"github.com/machinemap/machinemap/internal/listing"
	"github.com/machinemap/machinemap/pkg/errors"
	"github.com/machinemap/machinemap/pkg/logging"
	"github.com/machinemap/machinemap/pkg/machines"
)

// statusReconciler applies the status state machine to candidates whose
// link matched stored records.
type statusReconciler struct {
	server   *machines.Collection
	problems *Problems
	today    machines.Date
}

// statusCounts reports what one reconciliation did.
type statusCounts struct {
	changed     int
	retired     int
	reactivated int
}

// reconcile decides, for a candidate and the stored records sharing its
// URL, whether anything changed. Unknown stored/scraped combinations are
// fatal: guessing a transition could silently corrupt the dataset.
//
// Device-sourced records are promoted: the mutated copy is appended to the
// server dataset, which accumulates every machine the engine has had to
// say something about. Server-sourced records are mutated in place.
func (s *statusReconciler) reconcile(cand listing.Candidate, matches []*machines.Feature, source machines.Source) (statusCounts, error) {
	var counts statusCounts
	rec := cand.Record

	stored, ok := sameStatus(matches)
	if !ok {
		s.problems.Add(rec, rec.ExternalURL+" used in multiple pins with different states, requires manual handling.")
		return counts, nil
	}

	// No-change combinations.
	switch {
	case !cand.State.Unavailable() && stored.Tracked():
		return counts, nil
	case cand.State.Removed() && stored == machines.StatusRetired:
		return counts, nil
	case cand.State.TemporarilyUnavailable() && stored == machines.StatusOutOfOrder:
		return counts, nil
	}

	// A transition is on the table; divergent stored dates make the
	// tie-break ambiguous, so no sound default exists.
	updated, ok := sameDate(matches)
	if !ok {
		s.problems.Add(rec, rec.ExternalURL+" used in multiple pins with different dates, requires manual handling.")
		return counts, nil
	}

	// A human corrected this machine more recently than the site reflects;
	// the stored value wins.
	if cand.WebsiteUpdated.Before(updated) {
		return counts, nil
	}

	var next machines.Status
	switch {
	case stored.Tracked() && cand.State.Unavailable():
		next, _ = cand.State.Canonical()
	case (stored == machines.StatusRetired || stored == machines.StatusOutOfOrder) && !cand.State.Unavailable():
		next = machines.StatusAvailable
	case stored == machines.StatusRetired && cand.State.TemporarilyUnavailable():
		next = machines.StatusOutOfOrder
	case stored == machines.StatusOutOfOrder && cand.State.Removed():
		next = machines.StatusRetired
	default:
		return counts, &errors.TransitionError{
			Stored:  stored.String(),
			Scraped: string(cand.State),
			URL:     rec.ExternalURL,
		}
	}

	if len(matches) > 1 {
		logging.Warn().Str("url", rec.ExternalURL).Int("pins", len(matches)).
			Msg("A url linking to multiple machines changed state, maybe check manually")
	}

	for _, f := range matches {
		f.Properties.Status = next
		f.Properties.LastUpdated = s.today
		if source == machines.SourceDevice {
			promoted := *f
			promoted.Properties.Trim()
			s.server.Features = append(s.server.Features, &promoted)
		}
		counts.changed++
		switch next {
		case machines.StatusRetired:
			counts.retired++
		case machines.StatusAvailable:
			counts.reactivated++
		}
	}

	logging.Info().Str("machine", rec.Name).Str("area", rec.Area).
		Str("status", next.String()).Msg("Machine status changed")
	return counts, nil
}

// sameStatus returns the shared status of the matched records, or false
// when they diverge.
func sameStatus(matches []*machines.Feature) (machines.Status, bool) {
	status := matches[0].Properties.Status
	for _, f := range matches[1:] {
		if f.Properties.Status != status {
			return "", false
		}
	}
	return status, true
}

// sameDate returns the shared last_updated of the matched records, or
// false when they diverge.
func sameDate(matches []*machines.Feature) (machines.Date, bool) {
	date := matches[0].Properties.LastUpdated
	for _, f := range matches[1:] {
		if f.Properties.LastUpdated != date {
			return "", false
		}
	}
	return date, true
}
