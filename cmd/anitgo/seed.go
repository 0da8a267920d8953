package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"anitgo/pkg/model"
)

// seedMonuments are a few well-known records for local development, so
// UI work doesn't need a full sync first.
var seedMonuments = []model.MonumentPatch{
	{
		WikidataID:    "Q406",
		NameTR:        ptr("Ayasofya"),
		NameEN:        ptr("Hagia Sophia"),
		DescriptionTR: ptr("İstanbul'da cami, eski bazilika ve müze"),
		Latitude:      fptr(41.0086),
		Longitude:     fptr(28.98),
		City:          ptr("İstanbul"),
		District:      ptr("Fatih"),
		Province:      ptr("İstanbul"),
	},
	{
		WikidataID: "Q128910",
		NameTR:     ptr("Sultan Ahmet Camii"),
		NameEN:     ptr("Blue Mosque"),
		Latitude:   fptr(41.0054),
		Longitude:  fptr(28.9768),
		City:       ptr("İstanbul"),
		District:   ptr("Fatih"),
		Province:   ptr("İstanbul"),
	},
	{
		WikidataID: "Q170495",
		NameTR:     ptr("Topkapı Sarayı"),
		NameEN:     ptr("Topkapı Palace"),
		Latitude:   fptr(41.0115),
		Longitude:  fptr(28.9834),
		City:       ptr("İstanbul"),
		District:   ptr("Fatih"),
		Province:   ptr("İstanbul"),
	},
	{
		WikidataID: "Q5729",
		NameTR:     ptr("Anıtkabir"),
		NameEN:     ptr("Anıtkabir"),
		Latitude:   fptr(39.925),
		Longitude:  fptr(32.8369),
		City:       ptr("Ankara"),
		District:   ptr("Çankaya"),
		Province:   ptr("Ankara"),
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert a handful of demo monuments",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		for i := range seedMonuments {
			patch := seedMonuments[i]
			if _, _, err := a.store.UpsertMonument(cmd.Context(), &patch); err != nil {
				return fmt.Errorf("seed %s: %w", patch.WikidataID, err)
			}
		}
		fmt.Printf("Seeded %d monuments\n", len(seedMonuments))
		return nil
	},
}

func ptr(s string) *string    { return &s }
func fptr(f float64) *float64 { return &f }

func init() {
	rootCmd.AddCommand(seedCmd)
}
