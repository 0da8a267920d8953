package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"anitgo/pkg/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export monuments with coordinates as GeoJSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		n, err := export.GeoJSON(cmd.Context(), a.store, exportOut)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %d features to %s\n", n, exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "monuments.geojson", "output file")
	rootCmd.AddCommand(exportCmd)
}
