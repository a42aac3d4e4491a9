package app

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// NewReconcileCommand creates the reconcile command.
func (a *App) NewReconcileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass against the directory website",
		Long: `Reconcile scrapes the directory website area by area, compares every
listing row against the stored datasets, applies status transitions,
backfills links on matching stored machines, inserts new ones and
collects everything anomalous into the problem set.

The run is all-or-nothing: nothing is persisted when any step fails.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.Client()
			if err != nil {
				return err
			}
			result, err := client.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.Info().
				Int("areas", result.Areas).
				Int("rows", result.Rows).
				Int("changed", result.Changed).
				Int("new", result.New).
				Int("retired", result.Retired).
				Int("problems", result.Problems()).
				Bool("persisted", result.Persisted).
				Dur("duration", result.Duration).
				Msg("Run complete")
			return nil
		},
	}

	cmd.Flags().BoolVar(&a.config.DryRun, "dry-run", false, "run without persisting or publishing")
	cmd.Flags().BoolVar(&a.config.FromRemote, "from-remote", false, "pull the server dataset from the hosting repository")
	return cmd
}

// NewValidateCommand creates the validate command.
func (a *App) NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the stored datasets offline",
		Long: `Validate loads the device and server datasets and checks the invariants
a reconciliation run relies on: parseable GeoJSON, unique machine ids and
areas the area table knows.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.Client()
			if err != nil {
				return err
			}
			if err := client.Validate(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("datasets valid")
			return nil
		},
	}
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("machinemap version %s\n", a.version)
			fmt.Printf("commit: %s\n", a.commit)
			fmt.Printf("built: %s\n", a.date)
			fmt.Printf("go version: %s\n", runtime.Version())
			fmt.Printf("platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
