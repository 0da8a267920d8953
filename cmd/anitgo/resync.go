package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	resyncMissing  bool
	resyncLimit    int
	resyncPageSize int
)

var resyncCmd = &cobra.Command{
	Use:   "resync [QID]",
	Short: "Re-sync a single monument, or pull records missing locally",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resyncMissing && len(args) == 0 {
			return fmt.Errorf("either a QID argument or --missing is required")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if len(args) == 1 {
			m, err := a.orch.SyncOne(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Synced %s (%s)\n", m.WikidataID, m.DisplayName())
			a.printUsage()
			return nil
		}

		missing, err := a.recon.MissingIDs(ctx, resyncPageSize)
		if err != nil {
			return err
		}
		if len(missing) == 0 {
			fmt.Println("No missing records.")
			return nil
		}

		synced, err := a.orch.SyncMissing(ctx, missing, resyncLimit)
		if err != nil {
			return err
		}
		fmt.Printf("Synced %d of %d missing records\n", synced, len(missing))
		a.printUsage()
		return nil
	},
}

func init() {
	resyncCmd.Flags().BoolVar(&resyncMissing, "missing", false, "sync records the endpoint has but the store lacks")
	resyncCmd.Flags().IntVar(&resyncLimit, "limit", 0, "cap the number of missing records to sync (0 = all)")
	resyncCmd.Flags().IntVar(&resyncPageSize, "page-size", 5000, "rows per ID-listing page")
	rootCmd.AddCommand(resyncCmd)
}
