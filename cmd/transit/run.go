package main

import (
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/transit-incident-etl/internal/jobs"
	"github.com/couchcryptid/transit-incident-etl/internal/observability"
)

func newRunCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "run <job>",
		Short: "Run one batch job and exit",
		Long: `Runs a single batch job against the configured collaborators and
prints its result as JSON. See "transit jobs" for the job names.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w, err := openWorker(ctx, e.cfg, e.logger, observability.NewMetrics())
			if err != nil {
				return err
			}
			defer w.Close()

			registry, err := w.registry()
			if err != nil {
				return err
			}

			res, err := registry.Run(ctx, args[0])
			if err != nil {
				return err
			}

			out, err := json.Marshal(struct {
				Job string `json:"job"`
				jobs.Result
			}{Job: args[0], Result: res})
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		},
	}
}

func newJobsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List batch job names",
		Args:  cobra.NoArgs,
		// Listing needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range jobs.All {
				cmd.Println(name)
			}
		},
	}
}
