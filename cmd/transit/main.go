// Command transit runs the transit incident pipeline: the search API, the
// worker that hosts batch jobs and the ping loader, and one-off job runs.
package main

import (
	"io"
	"log/slog"
	"os"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/transit-incident-etl/internal/config"
)

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// env is the state shared by every subcommand once the root command's
// pre-run has loaded configuration.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
}

// load reads configuration and installs the process logger as the slog
// default.
func (e *env) load() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	e.cfg = cfg
	e.logger = sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	return nil
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:   "transit",
		Short: "transit - incident ingestion, ping integration, and search",
		Long: `Ingests incident reports and vehicle pings into the warehouse,
integrates them with the GTFS schedule, and serves the search API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return e.load()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(
		newSearchCommand(e),
		newWorkerCommand(e),
		newRunCommand(e),
		newJobsCommand(),
	)
	return root
}
