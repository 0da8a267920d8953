package model

import "time"

// Monument represents one catalogued cultural-heritage monument.
// The record is keyed by its Wikidata QID and is only ever created or
// enriched by the sync pipeline, never deleted.
type Monument struct {
	WikidataID string `json:"wikidata_id"`

	NameTR        *string `json:"name_tr,omitempty"`
	NameEN        *string `json:"name_en,omitempty"`
	DescriptionTR *string `json:"description_tr,omitempty"`
	DescriptionEN *string `json:"description_en,omitempty"`
	Aka           *string `json:"aka,omitempty"` // comma-joined alias list

	KulturEnvanteriID *string `json:"kulturenvanteri_id,omitempty"`
	CommonsCategory   *string `json:"commons_category,omitempty"`
	CommonsURL        *string `json:"commons_url,omitempty"`
	WikipediaURL      *string `json:"wikipedia_url,omitempty"`
	WikidataURL       *string `json:"wikidata_url,omitempty"`

	// Both present or both absent.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	City                *string `json:"city,omitempty"`
	District            *string `json:"district,omitempty"`
	Province            *string `json:"province,omitempty"`
	LocationHierarchyTR *string `json:"location_hierarchy_tr,omitempty"` // nearest-to-broadest, ", "-joined

	HasPhotos  bool `json:"has_photos"`
	PhotoCount *int `json:"photo_count,omitempty"` // nil = photos never synced

	// Open string-keyed map for secondary enrichment (instance-of, image
	// filename, raw Wikipedia URLs). Merged, never wholesale-replaced.
	Properties map[string]string `json:"properties,omitempty"`

	LastSyncedAt time.Time `json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// DisplayName returns the best available human-readable name.
func (m *Monument) DisplayName() string {
	if m.NameTR != nil && *m.NameTR != "" {
		return *m.NameTR
	}
	if m.NameEN != nil && *m.NameEN != "" {
		return *m.NameEN
	}
	return m.WikidataID
}

// HasCoordinates reports whether the record carries a valid coordinate pair.
func (m *Monument) HasCoordinates() bool {
	return m.Latitude != nil && m.Longitude != nil
}

// Photo is one Commons image attached to a monument.
type Photo struct {
	Filename         string  `json:"filename"` // unique Commons filename, File: prefixed
	WikidataID       string  `json:"wikidata_id"`
	URL              *string `json:"url,omitempty"`
	ThumbURL         *string `json:"thumb_url,omitempty"`
	Photographer     *string `json:"photographer,omitempty"`
	License          *string `json:"license,omitempty"`
	IsFeatured       bool    `json:"is_featured"`
	IsUploadedViaApp bool    `json:"is_uploaded_via_app"`

	// Set on every metadata fetch attempt, even when the result carried
	// nothing, so the photo rotates to the back of the enrichment queue.
	MetadataCheckedAt *time.Time `json:"metadata_checked_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
