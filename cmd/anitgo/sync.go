package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"anitgo/pkg/syncer"
)

var (
	syncBatchSize  int
	syncMaxBatches int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run the full Wikidata bulk synchronization",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("syncing"),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("records"),
		)

		result, err := a.orch.Run(ctx, syncer.Options{
			BatchSize:  syncBatchSize,
			MaxBatches: syncMaxBatches,
			Progress: func(p syncer.Progress) {
				if p.Event != syncer.EventEndBatch {
					return
				}
				_ = bar.Set(p.TotalSeen)
				desc := fmt.Sprintf("batch %d (new %d, updated %d, errors %d, http %d)",
					p.Batch, p.TotalNew, p.TotalUpdated, p.TotalErrors, p.LastStatus)
				if len(p.Examples) > 0 {
					desc += " · " + strings.Join(p.Examples, ", ")
				}
				bar.Describe(desc)
			},
		})
		_ = bar.Finish()
		fmt.Println()

		if errors.Is(err, syncer.ErrSyncRunning) {
			fmt.Println("Another sync run holds the lock; nothing to do.")
			return nil
		}
		if result != nil {
			fmt.Printf("Run %s: %s after %d batches — %d seen, %d new, %d updated, %d errors, %d filtered in %s\n",
				result.RunID, result.StopReason, result.Batches,
				result.Seen, result.New, result.Updated, result.Errors, result.Filtered,
				result.Duration.Round(time.Second))
		}
		a.printUsage()
		return err
	},
}

func init() {
	syncCmd.Flags().IntVar(&syncBatchSize, "batch-size", 0, "rows per SPARQL page (0 = config value)")
	syncCmd.Flags().IntVar(&syncMaxBatches, "max-batches", 0, "stop after N batches (0 = config value, -1 = unlimited)")
	rootCmd.AddCommand(syncCmd)
}
