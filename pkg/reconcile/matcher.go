package reconcile

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/umahmood/haversine"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/machinemap/machinemap/internal/geocode"
	"github.com/machinemap/machinemap/internal/listing"
	"github.com/machinemap/machinemap/internal/probe"
	"github.com/machinemap/machinemap/pkg/logging"
	"github.com/machinemap/machinemap/pkg/machines"
)

// matcher resolves candidates whose link matched nothing: either they are
// a stored link-less machine that just gained a link, or they are genuinely
// new. Link identity is the strongest signal; the text and geography
// fallbacks are conservative because a wrong merge is worse than a
// problem-set entry.
type matcher struct {
	cfg      Config
	index    *Index
	server   *machines.Collection
	problems *Problems
	geocoder geocode.Geocoder
	prober   probe.Prober
	today    machines.Date
	lev      *metrics.Levenshtein
}

func newMatcher(cfg Config, idx *Index, server *machines.Collection, problems *Problems,
	g geocode.Geocoder, p probe.Prober, today machines.Date) *matcher {
	lev := metrics.NewLevenshtein()
	lev.CaseSensitive = false
	return &matcher{
		cfg:      cfg,
		index:    idx,
		server:   server,
		problems: problems,
		geocoder: g,
		prober:   p,
		today:    today,
		lev:      lev,
	}
}

// matchCounts reports what placing one candidate did.
type matchCounts struct {
	changed int
	added   int
}

// place runs the matching chain for one unmatched candidate. validated
// marks links whose liveness was already checked this run.
func (m *matcher) place(ctx context.Context, cand listing.Candidate, validated map[string]bool) matchCounts {
	var counts matchCounts
	rec := cand.Record

	// An untracked machine that is not even available is nothing to add.
	if cand.State.Unavailable() {
		return counts
	}

	// Guard against re-adding the same machine twice within one pass.
	if m.index.HasName(rec.Area, rec.Name) {
		logging.Debug().Str("machine", rec.Name).Str("area", rec.Area).
			Str("url", rec.ExternalURL).Msg("Machine seems to be a duplicate")
		return counts
	}

	// Before treating the row as new, the link must actually respond.
	// Link-less rows skip the gate; coordinates are their only anchor.
	if rec.Linked() && !validated[rec.ExternalURL] {
		if res := m.prober.Probe(ctx, rec.ExternalURL); !res.OK {
			msg := "To-be-added machine " + rec.Name + " in " + rec.Area + " seems unavailable: " + rec.ExternalURL
			if res.Reason != "" {
				msg += " with " + res.Reason
			}
			m.problems.Add(rec, msg)
			return counts
		}
	}

	entries := m.index.LinklessInArea(rec.Area)
	if len(entries) > 0 {
		if done, c := m.matchByName(cand, entries); done {
			return c
		}
		if done, c := m.matchByAddress(cand, entries); done {
			return c
		}
		if done, c := m.matchByDistance(ctx, cand, entries); done {
			return c
		}
	}

	// Genuinely new machine.
	pt, ok := geocode.Locate(ctx, m.geocoder, rec.Name, rec.Address)
	if !ok || pt.Coordinates().NullIsland() {
		m.problems.Add(rec, rec.Name+" could not find coordinates for "+rec.Address)
		return counts
	}

	rec.ID = m.index.NextID()
	rec.Coordinates = pt.Coordinates()
	rec.LastUpdated = m.today
	m.server.Append(rec)
	m.index.RegisterName(rec.Area, rec.Name)

	logging.Info().Str("machine", rec.Name).Str("area", rec.Area).Int("id", rec.ID).
		Msg("Found machine to be added")
	counts.changed++
	counts.added++
	return counts
}

// matchByName tries the fuzzy name match against the link-less table. When
// more than one entry clears the threshold on name alone, the ranking is
// re-run on name+address to disambiguate.
func (m *matcher) matchByName(cand listing.Candidate, entries []*Linkless) (bool, matchCounts) {
	rec := cand.Record

	best, second := m.rank(rec.Name, entries, func(e *Linkless) string { return e.Name })
	if best == nil || best.score <= m.cfg.FuzzyThreshold {
		return false, matchCounts{}
	}

	if second != nil && second.score > m.cfg.FuzzyThreshold {
		logging.Info().Str("machine", rec.Name).
			Msg("Multiple fuzzy name matches, re-ranking on name and address")
		best, second = m.rank(rec.Name+rec.Address, entries,
			func(e *Linkless) string { return e.Name + e.Address })
		if second != nil && second.score > m.cfg.FuzzyThreshold {
			logging.Info().Str("machine", rec.Name).
				Msg("Still ambiguous after name and address, taking best match")
		}
	}

	if best.entry.Feature.Properties.Linked() {
		m.problems.Add(rec, "Machine "+rec.Name+" exists already as "+best.entry.Name)
		return true, matchCounts{}
	}

	logging.Info().Str("machine", rec.Name).Str("existing", best.entry.Name).
		Int("score", best.score).Msg("Machine already exists under a different listing name")
	return true, m.backfill(best.entry, rec.ExternalURL)
}

// matchByAddress tries the fuzzy address match: a renamed machine at the
// same venue.
func (m *matcher) matchByAddress(cand listing.Candidate, entries []*Linkless) (bool, matchCounts) {
	rec := cand.Record

	best, _ := m.rank(rec.Address, entries, func(e *Linkless) string { return e.Address })
	if best == nil || best.score < m.cfg.FuzzyThreshold {
		return false, matchCounts{}
	}

	if best.entry.Feature.Properties.Linked() {
		// Same venue, but the stored record points at another site.
		m.problems.Add(rec, "Machine "+rec.Name+" exists already as "+best.entry.Name)
		return true, matchCounts{}
	}

	logging.Info().Str("machine", rec.Name).Str("address", rec.Address).
		Str("existing", best.entry.Name).Msg("Machine already exists at this address")
	return true, m.backfill(best.entry, rec.ExternalURL)
}

// matchByDistance geocodes the candidate and accepts a stored link-less
// machine within the proximity radius as the same physical machine.
func (m *matcher) matchByDistance(ctx context.Context, cand listing.Candidate, entries []*Linkless) (bool, matchCounts) {
	rec := cand.Record

	pt, ok := geocode.Locate(ctx, m.geocoder, rec.Name, rec.Address)
	if !ok {
		return false, matchCounts{}
	}

	var closest *Linkless
	minDist := math.MaxFloat64
	for _, e := range entries {
		coords := e.Feature.Geometry.Coordinates
		if !coords.Set {
			continue
		}
		_, km := haversine.Distance(
			haversine.Coord{Lat: pt.Lat, Lon: pt.Lng},
			haversine.Coord{Lat: coords.Lat, Lon: coords.Lon},
		)
		if d := km * 1000; d < minDist {
			minDist = d
			closest = e
		}
	}
	if closest == nil || minDist >= m.cfg.ProximityMeters {
		return false, matchCounts{}
	}

	event := logging.Info().Str("machine", rec.Name).Str("existing", closest.Name).
		Float64("meters", minDist)
	if closest.Feature.Properties.Linked() {
		// Foreign-site link superseded by the directory link.
		event = event.Str("overwriting", closest.Feature.Properties.ExternalURL)
	}
	event.Msg("Distance match against existing machine")
	return true, m.backfill(closest, rec.ExternalURL)
}

// backfill attaches the freshly scraped link to a stored link-less record.
// Device-sourced records are promoted into the server dataset.
func (m *matcher) backfill(entry *Linkless, url string) matchCounts {
	if url == machines.NoURL {
		// A link-less row matched a stored link-less machine: the machine
		// is already represented, and there is nothing to attach. The
		// entry stays in the table so a linked row can still claim it.
		return matchCounts{}
	}
	f := entry.Feature
	f.Properties.ExternalURL = url
	f.Properties.LastUpdated = m.today
	if entry.Source == machines.SourceDevice {
		promoted := *f
		promoted.Properties.Trim()
		m.server.Features = append(m.server.Features, &promoted)
	}
	m.index.Unlink(entry)
	return matchCounts{changed: 1}
}

// ranked is one scored link-less entry.
type ranked struct {
	entry *Linkless
	score int
}

// rank scores the query against every entry and returns the two best.
func (m *matcher) rank(query string, entries []*Linkless, key func(*Linkless) string) (best, second *ranked) {
	q := canonical(query)
	for _, e := range entries {
		s := int(math.Round(strutil.Similarity(q, canonical(key(e)), m.lev) * 100))
		switch {
		case best == nil || s > best.score:
			best, second = &ranked{entry: e, score: s}, best
		case second == nil || s > second.score:
			second = &ranked{entry: e, score: s}
		}
	}
	return best, second
}

// canonical folds text for scoring: diacritics removed, case and outer
// whitespace dropped. Stored names come from collectors typing on phones;
// the listing has its own ideas about accents.
func canonical(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
