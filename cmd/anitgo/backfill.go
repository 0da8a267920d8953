package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	backfillJob  string
	backfillLoop bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Run the incremental backfill jobs",
	Long: `Runs one batch of each backfill job and exits. With --loop the jobs
stay resident on their timers until interrupted. --job restricts the run
to a single job class.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if backfillLoop {
			a.sched.Start(ctx)
			fmt.Println("Backfill scheduler running; Ctrl-C to stop.")
			a.sched.Wait()
			a.printUsage()
			return nil
		}

		names := a.sched.JobNames()
		if backfillJob != "" {
			names = []string{backfillJob}
		}
		for _, name := range names {
			processed, err := a.sched.RunOnce(ctx, name)
			if err != nil {
				return fmt.Errorf("job %s: %w", name, err)
			}
			fmt.Printf("%-16s processed %d\n", name, processed)
		}
		a.printUsage()
		return nil
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillJob, "job", "", "run a single job class")
	backfillCmd.Flags().BoolVar(&backfillLoop, "loop", false, "keep running on the configured intervals")
	rootCmd.AddCommand(backfillCmd)
}
