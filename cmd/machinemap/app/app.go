// Package app provides the application context and dependency wiring for
// the machinemap CLI: configuration, logging and the lazily built root
// client.
package app

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/machinemap/machinemap"
	"github.com/machinemap/machinemap/internal/publish"
	"github.com/machinemap/machinemap/pkg/logging"
)

// App represents the machinemap application and its dependencies.
type App struct {
	version string
	commit  string
	date    string

	config *Config
	logger *zerolog.Logger

	// Root client, lazily built once.
	mu     sync.Mutex
	client machinemap.Machinemap
}

// New creates a new App instance with the given version information.
func New(version, commit, date string) (*App, error) {
	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	logger := NewLogger(config)
	logging.SetDefault(logger)

	return &App{
		version: version,
		commit:  commit,
		date:    date,
		config:  config,
		logger:  &logger,
	}, nil
}

// Version returns the version string.
func (a *App) Version() string { return a.version }

// Config returns the application configuration.
func (a *App) Config() *Config { return a.config }

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger { return a.logger }

// Client returns the root client, building it on first use.
func (a *App) Client() (machinemap.Machinemap, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	client, err := machinemap.New(a.buildOptions()...)
	if err != nil {
		return nil, err
	}
	a.client = client
	return client, nil
}

// buildOptions translates the application configuration into root client
// options.
func (a *App) buildOptions() []machinemap.Option {
	c := a.config
	opts := []machinemap.Option{
		machinemap.WithDataDir(c.DataDir),
		machinemap.WithListingURL(c.ListingURL),
		machinemap.WithDryRun(c.DryRun),
		machinemap.WithFromRemote(c.FromRemote),
	}
	if c.AreasFile != "" {
		opts = append(opts, machinemap.WithAreasFile(c.AreasFile))
	}
	if c.GoogleAPIKey != "" {
		opts = append(opts, machinemap.WithGoogleAPIKey(c.GoogleAPIKey))
	}
	if c.GitHubToken != "" {
		opts = append(opts, machinemap.WithGitHub(publish.Options{
			Owner: c.GitHubOwner,
			Repo:  c.GitHubRepo,
			Token: c.GitHubToken,
		}))
	}
	if c.SlackToken != "" {
		opts = append(opts, machinemap.WithSlack(c.SlackToken, c.SlackChannel))
	}
	return opts
}
