package export

import (
	"context"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"anitgo/pkg/model"
	"anitgo/pkg/store"
)

// pageSize for reading monuments out of the store.
const pageSize = 1000

// GeoJSON writes every monument with coordinates as a FeatureCollection.
// Records without a coordinate pair are skipped, not emitted with nulls.
func GeoJSON(ctx context.Context, s store.MonumentStore, path string) (int, error) {
	fc := geojson.NewFeatureCollection()

	offset := 0
	for {
		batch, err := s.ListMonuments(ctx, pageSize, offset)
		if err != nil {
			return 0, fmt.Errorf("list monuments: %w", err)
		}
		for _, m := range batch {
			if !m.HasCoordinates() {
				continue
			}
			fc.Append(feature(m))
		}
		if len(batch) < pageSize {
			break
		}
		offset += pageSize
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return 0, fmt.Errorf("marshal feature collection: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return len(fc.Features), nil
}

func feature(m *model.Monument) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{*m.Longitude, *m.Latitude})
	f.Properties["wikidata_id"] = m.WikidataID
	f.Properties["name"] = m.DisplayName()
	if m.KulturEnvanteriID != nil {
		f.Properties["kulturenvanteri_id"] = *m.KulturEnvanteriID
	}
	if m.Province != nil {
		f.Properties["province"] = *m.Province
	}
	if m.District != nil {
		f.Properties["district"] = *m.District
	}
	if m.CommonsCategory != nil {
		f.Properties["commons_category"] = *m.CommonsCategory
	}
	f.Properties["has_photos"] = m.HasPhotos
	return f
}
