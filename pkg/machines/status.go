package machines

import "fmt"

// Status is the canonical lifecycle state of a machine record.
type Status string

// Canonical statuses. A machine is never deleted: retirement is a status
// change, so the historical record stays traceable.
const (
	// StatusUnvisited means the machine is known to exist but has not yet
	// been physically confirmed by a collector.
	StatusUnvisited Status = "unvisited"

	// StatusAvailable means the machine is confirmed and operational.
	StatusAvailable Status = "available"

	// StatusOutOfOrder means the machine is temporarily unavailable.
	StatusOutOfOrder Status = "out-of-order"

	// StatusRetired means the machine was moved or permanently removed.
	StatusRetired Status = "retired"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Valid reports whether s is one of the canonical statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUnvisited, StatusAvailable, StatusOutOfOrder, StatusRetired:
		return true
	}
	return false
}

// Tracked reports whether the record counts as currently present on site,
// i.e. not retired and not out of order.
func (s Status) Tracked() bool {
	return s == StatusUnvisited || s == StatusAvailable
}

// ParseStatus parses a status string and validates it.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown machine status %q", raw)
	}
	return s, nil
}

// ScrapedState is the raw status vocabulary of the external directory
// website. Anything not in the removed or temporarily-unavailable sets
// (coin denominations like "1p" or "4p", mostly) counts as available.
type ScrapedState string

// Raw states reported by the directory listing.
const (
	ScrapedAvailable  ScrapedState = "available"
	ScrapedMoved      ScrapedState = "Moved"
	ScrapedGone       ScrapedState = "Gone"
	ScrapedOutOfOrder ScrapedState = "Out of Order"
)

// ParseScrapedState collapses a raw listing status cell into one of the
// recognized scraped states.
func ParseScrapedState(raw string) ScrapedState {
	switch ScrapedState(raw) {
	case ScrapedMoved, ScrapedGone, ScrapedOutOfOrder:
		return ScrapedState(raw)
	}
	return ScrapedAvailable
}

// Removed reports whether the state means the machine is permanently gone.
func (s ScrapedState) Removed() bool {
	return s == ScrapedMoved || s == ScrapedGone
}

// TemporarilyUnavailable reports whether the state means the machine is
// down but expected back.
func (s ScrapedState) TemporarilyUnavailable() bool {
	return s == ScrapedOutOfOrder
}

// Unavailable reports whether the state is anything other than available.
func (s ScrapedState) Unavailable() bool {
	return s.Removed() || s.TemporarilyUnavailable()
}

// Canonical maps an unavailable scraped state to the canonical status it
// transitions a stored record into.
func (s ScrapedState) Canonical() (Status, bool) {
	switch s {
	case ScrapedMoved, ScrapedGone:
		return StatusRetired, true
	case ScrapedOutOfOrder:
		return StatusOutOfOrder, true
	}
	return "", false
}
