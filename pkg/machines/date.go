package machines

import (
	"encoding/json"
	"fmt"
	"time"
)

// Date is a calendar date in YYYY-MM-DD form. Zero-padded ISO dates order
// lexicographically, so Before/After compare the underlying strings.
//
// The problem dataset uses the numeric sentinel -1 for last_updated to mark
// entries that are not real records; None represents that sentinel.
type Date string

// None is the sentinel date carried by problem-set entries.
const None Date = "-1"

// Today returns the current date.
func Today() Date {
	return Date(time.Now().Format("2006-01-02"))
}

// NewDate builds a Date from year, month and day.
func NewDate(year, month, day int) Date {
	return Date(fmt.Sprintf("%04d-%02d-%02d", year, month, day))
}

// String returns the string representation of the date.
func (d Date) String() string {
	return string(d)
}

// IsNone reports whether the date is the problem-set sentinel.
func (d Date) IsNone() bool {
	return d == None || d == ""
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return string(d) < string(other)
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return string(d) > string(other)
}

// MarshalJSON writes the sentinel as the number -1 and everything else as a
// plain string, matching the persisted dataset format.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsNone() {
		return []byte("-1"), nil
	}
	return json.Marshal(string(d))
}

// UnmarshalJSON accepts both the string form and the numeric -1 sentinel.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = Date(s)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n == -1 {
			*d = None
			return nil
		}
		return fmt.Errorf("unexpected numeric date %d", n)
	}
	return fmt.Errorf("invalid date %s", string(data))
}
