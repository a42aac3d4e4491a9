// Package machinemap reconciles a crowd-sourced map of physical vending
// machines against the external directory that lists them. The root client
// wires the scraper, the geocoder, the link prober and the publishing
// collaborators together; the engine itself lives in pkg/reconcile.
package machinemap

import (
	"context"
	"net/http"
	"time"

	"github.com/machinemap/machinemap/internal/areas"
	"github.com/machinemap/machinemap/internal/geocode"
	"github.com/machinemap/machinemap/internal/listing"
	"github.com/machinemap/machinemap/internal/notify"
	"github.com/machinemap/machinemap/internal/probe"
	"github.com/machinemap/machinemap/internal/publish"
	"github.com/machinemap/machinemap/pkg/errors"
	"github.com/machinemap/machinemap/pkg/machines"
	"github.com/machinemap/machinemap/pkg/reconcile"
)

// Machinemap is the root client.
type Machinemap interface {
	// Reconcile runs one full reconciliation pass.
	Reconcile(ctx context.Context) (*reconcile.Result, error)

	// Validate checks the stored datasets offline: parseable files,
	// unique machine ids, known areas.
	Validate(ctx context.Context) error
}

type machinemap struct {
	config *config
	table  *areas.Table
}

// New creates a Machinemap instance with the given options.
func New(opts ...Option) (Machinemap, error) {
	c := defaultConfig()
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	table := c.table
	if table == nil {
		var err error
		if c.areasFile != "" {
			table, err = areas.LoadFile(c.areasFile)
		} else {
			table, err = areas.Embedded()
		}
		if err != nil {
			return nil, err
		}
	}

	if c.listing == nil {
		c.listing = listing.NewClient(c.listingURL, c.httpClient)
	}
	if c.prober == nil {
		c.prober = probe.NewHTTP(c.httpClient)
	}
	if c.geocoder == nil && c.googleAPIKey != "" {
		c.geocoder = geocode.NewGoogle(c.googleAPIKey, "", c.httpClient)
	}
	if c.publisher == nil && c.github.Token != "" {
		pub, err := publish.NewGitHub(context.Background(), c.github)
		if err != nil {
			return nil, err
		}
		c.publisher = pub
	}
	if c.notifier == nil {
		if c.slackToken != "" {
			c.notifier = notify.NewSlack(c.slackToken, c.slackChannel)
		} else {
			c.notifier = notify.Nop{}
		}
	}

	return &machinemap{config: c, table: table}, nil
}

// Reconcile runs one full reconciliation pass.
func (m *machinemap) Reconcile(ctx context.Context) (*reconcile.Result, error) {
	c := m.config
	if c.geocoder == nil {
		return nil, &errors.ValidationError{Field: "geocoder", Message: "a geocoder or a Google Maps API key is required"}
	}
	r, err := reconcile.New(c.reconcile, m.table, c.listing, c.geocoder, c.prober, c.publisher, c.notifier)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx)
}

// Validate checks the stored datasets without touching the network.
func (m *machinemap) Validate(_ context.Context) error {
	cfg := m.config.reconcile
	for _, path := range []string{cfg.DeviceJSON, cfg.ServerJSON} {
		c, err := machines.Load(path)
		if err != nil {
			return err
		}
		if err := c.ValidateUniqueIDs(); err != nil {
			return errors.WrapParse("dataset", path, err)
		}
		var unknown []string
		seen := map[string]bool{}
		for _, f := range c.Features {
			area := f.Properties.Area
			if seen[area] {
				continue
			}
			seen[area] = true
			if _, ok := m.table.Code(area); !ok {
				unknown = append(unknown, area)
			}
		}
		if len(unknown) > 0 {
			return &errors.AreaError{Unknown: unknown}
		}
	}
	return nil
}

// defaultHTTPClient is shared by the scraper, prober and geocoder unless
// the caller brings their own.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
