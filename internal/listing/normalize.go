package listing

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/machinemap/machinemap/pkg/errors"
	"github.com/machinemap/machinemap/pkg/machines"
)

// Candidate is a normalized but not yet identified record derived from one
// scraped listing row. Identity (a machine id, or a match against a stored
// record) is assigned later by the reconciler.
type Candidate struct {
	Record machines.Record

	// State is the scraped status, kept in the site's vocabulary until the
	// status reconciler maps it.
	State machines.ScrapedState

	// WebsiteUpdated is the site's own last-change date for the row. Used
	// only for tie-breaking against a stored record's last_updated, never
	// for identity.
	WebsiteUpdated machines.Date
}

// Normalize turns a raw listing row into a candidate record: id unassigned,
// coordinates unresolved, status vocabulary mapped, site-update date carried
// along.
func Normalize(row Row, area string) (Candidate, error) {
	// Some listings carry no detail link at all; those rows still describe
	// a machine and flow into the matching chain link-less.
	link := row.Link
	if link == "" {
		link = machines.NoURL
	}

	updated, err := siteDate(row.Updated)
	if err != nil {
		return Candidate{}, &errors.ValidationError{
			Field:   "updated",
			Value:   row.Updated,
			Message: err.Error(),
		}
	}

	address := clean(row.Subtitle)
	if city := clean(row.City); city != "" {
		address = address + ", " + city
	}

	return Candidate{
		Record: machines.Record{
			ID:          machines.UnassignedID,
			Name:        clean(row.Title),
			Area:        area,
			Address:     address,
			ExternalURL: link,
			Status:      machines.StatusUnvisited,
			LastUpdated: machines.Today(),
		},
		State:          machines.ParseScrapedState(row.Status),
		WebsiteUpdated: updated,
	}, nil
}

// siteDate converts the directory's M/D/YY date into ISO form. The site
// outlived Y2K by using two-digit years; all of its data is post-2000.
func siteDate(raw string) (machines.Date, error) {
	parts := strings.Split(raw, "/")
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed site date %q", raw)
	}
	month, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return "", fmt.Errorf("malformed site date %q", raw)
	}
	day, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return "", fmt.Errorf("malformed site date %q", raw)
	}
	year, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return "", fmt.Errorf("malformed site date %q", raw)
	}
	return machines.NewDate(2000+year, month, day), nil
}

// clean unescapes HTML entities and collapses surrounding whitespace.
func clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(s))
}
