package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	verifyPageSize int
	verifyShowIDs  bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Reconcile the local catalog against the Wikidata endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		report, err := a.recon.Check(ctx, verifyPageSize)
		if err != nil {
			return err
		}

		fmt.Printf("Expected (endpoint): %d\n", report.Expected)
		fmt.Printf("Local records:       %d\n", report.Local)
		fmt.Printf("Missing locally:     %d\n", len(report.Missing))
		if report.Pass {
			fmt.Println("Result: PASS")
		} else {
			fmt.Println("Result: FAIL")
		}

		if verifyShowIDs && len(report.Missing) > 0 {
			fmt.Println("\nMissing IDs:")
			for _, qid := range report.Missing {
				fmt.Println("  " + qid)
			}
		}
		a.printUsage()
		return nil
	},
}

func init() {
	verifyCmd.Flags().IntVar(&verifyPageSize, "page-size", 5000, "rows per ID-listing page")
	verifyCmd.Flags().BoolVar(&verifyShowIDs, "show-ids", false, "print every missing QID")
	rootCmd.AddCommand(verifyCmd)
}
