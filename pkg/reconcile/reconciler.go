// Package reconcile implements the batch reconciliation engine: it fetches
// the authoritative listing of machines per area, compares it against the
// on-device and server datasets, and produces an updated, de-duplicated
// server dataset plus a problem dataset of anomalies needing human review.
//
// The run is single-threaded and all-or-nothing: every mutation happens
// against in-memory copies, and nothing is persisted until the whole pass
// succeeded. Idempotence across runs substitutes for transactional
// rollback: re-running over unchanged inputs changes nothing.
package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/machinemap/machinemap/internal/areas"
	"github.com/machinemap/machinemap/internal/geocode"
	"github.com/machinemap/machinemap/internal/lease"
	"github.com/machinemap/machinemap/internal/listing"
	"github.com/machinemap/machinemap/internal/notify"
	"github.com/machinemap/machinemap/internal/probe"
	"github.com/machinemap/machinemap/internal/publish"
	"github.com/machinemap/machinemap/pkg/errors"
	"github.com/machinemap/machinemap/pkg/logging"
	"github.com/machinemap/machinemap/pkg/machines"
)

// Listing is the subset of the listing client the engine needs.
type Listing interface {
	Areas(ctx context.Context) ([]string, error)
	Rows(ctx context.Context, areaCode int) ([]listing.Row, error)
	Hosts(url string) bool
}

// Reconciler drives one reconciliation run.
type Reconciler struct {
	cfg       Config
	table     *areas.Table
	listing   Listing
	geocoder  geocode.Geocoder
	prober    probe.Prober
	publisher publish.Publisher
	notifier  notify.Notifier
}

// New creates a Reconciler. Table, listing, geocoder and prober are
// required; publisher may be nil for local-only runs and notifier may be
// nil when chat is not configured.
func New(cfg Config, table *areas.Table, l Listing, g geocode.Geocoder, p probe.Prober,
	pub publish.Publisher, n notify.Notifier) (*Reconciler, error) {
	if table == nil || l == nil || g == nil || p == nil {
		return nil, &errors.ValidationError{Field: "collaborators", Message: "table, listing, geocoder and prober are required"}
	}
	if n == nil {
		n = notify.Nop{}
	}
	return &Reconciler{
		cfg:       cfg.withDefaults(),
		table:     table,
		listing:   l,
		geocoder:  g,
		prober:    p,
		publisher: pub,
		notifier:  n,
	}, nil
}

// Run executes the reconciliation and returns the result. Any fatal error
// aborts before the persist step; the problem set handles everything
// recoverable.
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	logging.Info().Time("start", start).Msg("Reconciliation run starting")

	if r.cfg.RunMarker != "" {
		held, err := lease.Acquire(r.cfg.RunMarker)
		if err != nil {
			return nil, err
		}
		defer func() { _ = held.Release() }()
	}

	device, server, problems, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	// An unrecognized area is a hard stop: proceeding could misfile
	// machines under the wrong jurisdiction.
	published, err := r.listing.Areas(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.table.Validate(published); err != nil {
		return nil, err
	}

	idx := BuildIndex(server, device, r.listing.Hosts)
	status := &statusReconciler{server: server, problems: problems, today: machines.Today()}
	match := newMatcher(r.cfg, idx, server, problems, r.geocoder, r.prober, machines.Today())

	result := &Result{Merged: server, ProblemSet: problems.Collection(), StartTime: start}
	validated := map[string]bool{}

	for _, area := range published {
		if r.table.Skip(area) {
			continue
		}
		code, _ := r.table.Code(area)
		areaCtx := logging.WithArea(ctx, area)

		rows, err := r.listing.Rows(areaCtx, code)
		if err != nil {
			return nil, err
		}
		logging.Ctx(areaCtx).Info().Int("rows", len(rows)).Msg("Area scraped")

		for _, row := range rows {
			cand, err := listing.Normalize(row, area)
			if err != nil {
				// A malformed row is broken scraping, not broken data.
				return nil, err
			}
			result.Rows++

			if problems.Skip(cand.Record.ExternalURL) {
				continue
			}

			// Rows declared available must actually respond before they
			// are allowed to drive any decision. Link-less rows have
			// nothing to probe.
			if cand.Record.Linked() && !cand.State.Unavailable() {
				res := r.prober.Probe(areaCtx, cand.Record.ExternalURL)
				if !res.OK {
					problems.Add(cand.Record, "Machine "+cand.Record.Name+" in "+area+
						" shown as available but "+cand.Record.ExternalURL+" responds "+res.Reason)
					continue
				}
				validated[cand.Record.ExternalURL] = true
			}

			if matches, source, ok := idx.Lookup(cand.Record.ExternalURL); ok {
				counts, err := status.reconcile(cand, matches, source)
				if err != nil {
					return nil, err
				}
				result.Changed += counts.changed
				result.Retired += counts.retired
				result.New += counts.reactivated
				continue
			}

			counts := match.place(areaCtx, cand, validated)
			result.Changed += counts.changed
			result.New += counts.added
		}
		result.Areas++
	}

	// No record may be silently duplicated across runs.
	if err := server.ValidateUniqueIDs(); err != nil {
		return nil, err
	}

	r.crossCheck(ctx, server, problems, validated)

	logging.Info().Int("changed", result.Changed).Int("new", result.New).
		Int("retired", result.Retired).Int("problems", problems.Count()).
		Msg("Reconciliation finished")

	if !r.cfg.DryRun {
		if err := r.persist(ctx, result); err != nil {
			return nil, err
		}
		result.Persisted = true
	}

	r.notifier.RunSummary(ctx, result.Changed, result.New, result.Retired)
	r.notifier.Problems(ctx, problems.Count())

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	return result, nil
}

// load reads the three inputs: device dataset, server dataset and the
// previous problem set plus skip list (both optional).
func (r *Reconciler) load(ctx context.Context) (device, server *machines.Collection, problems *Problems, err error) {
	device, err = machines.Load(r.cfg.DeviceJSON)
	if err != nil {
		return nil, nil, nil, err
	}

	var previous, skip *machines.Collection
	if r.cfg.FromRemote && r.publisher != nil {
		server, err = r.fetchRemote(ctx, publish.ServerLocationsPath, r.cfg.ServerJSON)
		if err != nil {
			return nil, nil, nil, err
		}
		if previous, err = r.fetchRemote(ctx, publish.ProblemsPath, ""); err != nil {
			return nil, nil, nil, err
		}
		if skip, err = r.fetchRemote(ctx, publish.SkipPath, ""); err != nil {
			return nil, nil, nil, err
		}
	} else {
		if server, err = machines.Load(r.cfg.ServerJSON); err != nil {
			return nil, nil, nil, err
		}
		previous = loadOptional(r.cfg.ProblemsJSON)
		skip = loadOptional(r.cfg.SkipJSON)
	}

	return device, server, NewProblems(previous, skip), nil
}

// fetchRemote pulls a dataset from the hosting repository, optionally
// keeping a local copy for later comparison.
func (r *Reconciler) fetchRemote(ctx context.Context, path, localCopy string) (*machines.Collection, error) {
	data, err := r.publisher.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	c, err := machines.Decode(data)
	if err != nil {
		return nil, errors.WrapParse("json", path, err)
	}
	if localCopy != "" {
		if err := c.Save(localCopy); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// loadOptional reads a collection, treating a missing file as empty.
func loadOptional(path string) *machines.Collection {
	if path == "" {
		return machines.NewCollection()
	}
	if _, err := os.Stat(path); err != nil {
		return machines.NewCollection()
	}
	c, err := machines.Load(path)
	if err != nil {
		logging.Warn().Str("path", path).Err(err).Msg("Ignoring unreadable optional dataset")
		return machines.NewCollection()
	}
	return c
}

// crossCheck probes every record that claims to be on site. Reachability
// is advisory: a failure produces a problem entry, never a status change,
// because only the listing's own declared state drives transitions.
func (r *Reconciler) crossCheck(ctx context.Context, server *machines.Collection, problems *Problems, validated map[string]bool) {
	for _, f := range server.Features {
		rec := f.Properties
		if !rec.Status.Tracked() || !rec.Linked() || !r.listing.Hosts(rec.ExternalURL) {
			continue
		}
		if validated[rec.ExternalURL] || problems.Skip(rec.ExternalURL) {
			continue
		}
		if res := r.prober.Probe(ctx, rec.ExternalURL); !res.OK {
			msg := "Machine " + rec.Name + " in " + rec.Area + " should be available but " +
				rec.ExternalURL + " is not reachable"
			if res.Reason != "" {
				msg += " (" + res.Reason + ")"
			}
			problems.Add(rec, msg)
		}
	}
}

// persist writes the run artifacts and hands them to the publishing
// collaborator. Nothing before this point touched durable storage.
func (r *Reconciler) persist(ctx context.Context, result *Result) error {
	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return errors.WrapIO("create", r.cfg.OutputDir, err)
	}

	serverPath := filepath.Join(r.cfg.OutputDir, "server_locations.json")
	if err := result.Merged.Save(serverPath); err != nil {
		return err
	}
	if result.Problems() > 0 {
		if err := result.ProblemSet.Save(filepath.Join(r.cfg.OutputDir, "problems.json")); err != nil {
			return err
		}
	}

	if r.publisher == nil {
		return nil
	}

	message := publish.CommitMessage(result.Changed, result.New, result.Retired)
	body := publish.ReviewBody(result.Changed, result.New, result.Retired, result.Problems())

	merged, err := result.Merged.Encode()
	if err != nil {
		return err
	}
	if err := r.publisher.Commit(ctx, publish.ServerLocationsPath, merged, message, body); err != nil {
		return err
	}
	if result.Problems() > 0 {
		probs, err := result.ProblemSet.Encode()
		if err != nil {
			return err
		}
		if err := r.publisher.Commit(ctx, publish.ProblemsPath, probs, message, body); err != nil {
			return err
		}
	}
	return nil
}
