package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"anitgo/pkg/db"
	"anitgo/pkg/model"
)

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Monuments ---

const monumentColumns = `wikidata_id, name_tr, name_en, description_tr, description_en, aka,
	kulturenvanteri_id, commons_category, commons_url, wikipedia_url, wikidata_url,
	latitude, longitude, city, district, province, location_hierarchy_tr,
	has_photos, photo_count, properties, last_synced_at, created_at`

func (s *SQLiteStore) GetMonument(ctx context.Context, wikidataID string) (*model.Monument, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+monumentColumns+` FROM monuments WHERE wikidata_id = ?`, wikidataID)

	m, err := scanMonument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return m, nil
}

func (s *SQLiteStore) UpsertMonument(ctx context.Context, patch *model.MonumentPatch) (created, needsHierarchy bool, err error) {
	existing, err := s.GetMonument(ctx, patch.WikidataID)
	if err != nil {
		return false, false, err
	}

	var m *model.Monument
	if existing == nil {
		m = patch.NewMonument()
		m.CreatedAt = time.Now().UTC()
		created = true
	} else {
		m = existing
		patch.Apply(m)
	}
	m.LastSyncedAt = time.Now().UTC()

	if err := s.saveMonument(ctx, m); err != nil {
		return false, false, err
	}
	return created, m.LocationHierarchyTR == nil, nil
}

func (s *SQLiteStore) HealMonument(ctx context.Context, patch *model.MonumentPatch) (bool, error) {
	existing, err := s.GetMonument(ctx, patch.WikidataID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, fmt.Errorf("monument %s not found", patch.WikidataID)
	}

	changed := patch.Heal(existing)
	// Touch even when nothing changed so the record rotates to the back
	// of the backfill queue instead of being retried every run.
	existing.LastSyncedAt = time.Now().UTC()

	if err := s.saveMonument(ctx, existing); err != nil {
		return false, err
	}
	return changed, nil
}

func (s *SQLiteStore) saveMonument(ctx context.Context, m *model.Monument) error {
	var props any
	if len(m.Properties) > 0 {
		data, err := json.Marshal(m.Properties)
		if err != nil {
			return fmt.Errorf("failed to encode properties: %w", err)
		}
		props = string(data)
	}

	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `INSERT OR REPLACE INTO monuments (` + monumentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		m.WikidataID, nullStr(m.NameTR), nullStr(m.NameEN),
		nullStr(m.DescriptionTR), nullStr(m.DescriptionEN), nullStr(m.Aka),
		nullStr(m.KulturEnvanteriID), nullStr(m.CommonsCategory),
		nullStr(m.CommonsURL), nullStr(m.WikipediaURL), nullStr(m.WikidataURL),
		nullFloat(m.Latitude), nullFloat(m.Longitude),
		nullStr(m.City), nullStr(m.District), nullStr(m.Province),
		nullStr(m.LocationHierarchyTR),
		m.HasPhotos, nullInt(m.PhotoCount), props,
		m.LastSyncedAt, createdAt,
	)
	return err
}

// backfillPredicates maps each target to its missing-field selection.
// All predicates require the external catalog ID except the one that
// backfills it.
var backfillPredicates = map[BackfillTarget]string{
	TargetDescriptions:    "description_tr IS NULL AND kulturenvanteri_id IS NOT NULL",
	TargetHierarchy:       "location_hierarchy_tr IS NULL AND kulturenvanteri_id IS NOT NULL",
	TargetCommons:         "commons_category IS NULL AND kulturenvanteri_id IS NOT NULL",
	TargetKulturEnvanteri: "kulturenvanteri_id IS NULL",
	TargetPhotos:          "photo_count IS NULL AND commons_category IS NOT NULL",
	TargetComprehensive: `(description_tr IS NULL OR description_en IS NULL OR aka IS NULL
		OR commons_category IS NULL OR latitude IS NULL) AND kulturenvanteri_id IS NOT NULL`,
}

func (s *SQLiteStore) ClaimBatch(ctx context.Context, target BackfillTarget, limit int) ([]*model.Monument, error) {
	predicate, ok := backfillPredicates[target]
	if !ok {
		return nil, fmt.Errorf("unknown backfill target %d", target)
	}

	// NULL last_synced_at sorts first in sqlite ASC order, so never-synced
	// records are always claimed before stale ones.
	query := `SELECT ` + monumentColumns + ` FROM monuments
		WHERE ` + predicate + `
		ORDER BY last_synced_at ASC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.Monument
	for rows.Next() {
		m, err := scanMonument(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) CountMonuments(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT wikidata_id) FROM monuments`).Scan(&count)
	return count, err
}

func (s *SQLiteStore) DistinctIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT wikidata_id FROM monuments`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) ListMonuments(ctx context.Context, limit, offset int) ([]*model.Monument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+monumentColumns+` FROM monuments ORDER BY wikidata_id LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.Monument
	for rows.Next() {
		m, err := scanMonument(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// --- Photos ---

func (s *SQLiteStore) SavePhoto(ctx context.Context, p *model.Photo) error {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `INSERT OR REPLACE INTO photos (
		filename, wikidata_id, url, thumb_url, photographer, license,
		is_featured, is_uploaded_via_app, metadata_checked_at, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		p.Filename, p.WikidataID, nullStr(p.URL), nullStr(p.ThumbURL),
		nullStr(p.Photographer), nullStr(p.License),
		p.IsFeatured, p.IsUploadedViaApp, nullTime(p.MetadataCheckedAt), createdAt,
	)
	return err
}

func (s *SQLiteStore) GetPhotos(ctx context.Context, wikidataID string) ([]*model.Photo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT filename, wikidata_id, url, thumb_url, photographer, license,
			is_featured, is_uploaded_via_app, metadata_checked_at, created_at
		 FROM photos WHERE wikidata_id = ? ORDER BY filename`, wikidataID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPhotos(rows)
}

func (s *SQLiteStore) PhotosMissingMetadata(ctx context.Context, limit int) ([]*model.Photo, error) {
	// NULL metadata_checked_at sorts first, so never-attempted photos are
	// claimed before ones whose last fetch came back empty.
	rows, err := s.db.QueryContext(ctx,
		`SELECT filename, wikidata_id, url, thumb_url, photographer, license,
			is_featured, is_uploaded_via_app, metadata_checked_at, created_at
		 FROM photos WHERE photographer IS NULL OR license IS NULL
		 ORDER BY metadata_checked_at ASC, created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPhotos(rows)
}

func (s *SQLiteStore) RefreshPhotoFlags(ctx context.Context, wikidataID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE monuments SET
			photo_count = (SELECT COUNT(*) FROM photos WHERE wikidata_id = ?),
			has_photos = EXISTS (SELECT 1 FROM photos WHERE wikidata_id = ?)
		 WHERE wikidata_id = ?`,
		wikidataID, wikidataID, wikidataID)
	return err
}

// --- Locks ---

func (s *SQLiteStore) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	expires := now.Add(ttl)

	// Claim the lock when it is free or its TTL has lapsed. The single
	// write connection makes the read-then-write race-free.
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_locks (name, acquired_at, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET acquired_at = excluded.acquired_at, expires_at = excluded.expires_at
		 WHERE sync_locks.expires_at < ?`,
		name, now, expires, now)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *SQLiteStore) ReleaseLock(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_locks WHERE name = ?`, name)
	return err
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM persistent_state WHERE key = ?`, key).Scan(&val)
	if err != nil {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO persistent_state (key, value) VALUES (?, ?)`, key, val)
	return err
}

// --- Scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMonument(row rowScanner) (*model.Monument, error) {
	var m model.Monument
	var nameTR, nameEN, descTR, descEN, aka sql.NullString
	var kulturID, commonsCat, commonsURL, wikipediaURL, wikidataURL sql.NullString
	var lat, lon sql.NullFloat64
	var city, district, province, hierarchy sql.NullString
	var photoCount sql.NullInt64
	var props sql.NullString
	var lastSynced sql.NullTime

	err := row.Scan(
		&m.WikidataID, &nameTR, &nameEN, &descTR, &descEN, &aka,
		&kulturID, &commonsCat, &commonsURL, &wikipediaURL, &wikidataURL,
		&lat, &lon, &city, &district, &province, &hierarchy,
		&m.HasPhotos, &photoCount, &props, &lastSynced, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.NameTR = strPtr(nameTR)
	m.NameEN = strPtr(nameEN)
	m.DescriptionTR = strPtr(descTR)
	m.DescriptionEN = strPtr(descEN)
	m.Aka = strPtr(aka)
	m.KulturEnvanteriID = strPtr(kulturID)
	m.CommonsCategory = strPtr(commonsCat)
	m.CommonsURL = strPtr(commonsURL)
	m.WikipediaURL = strPtr(wikipediaURL)
	m.WikidataURL = strPtr(wikidataURL)
	m.City = strPtr(city)
	m.District = strPtr(district)
	m.Province = strPtr(province)
	m.LocationHierarchyTR = strPtr(hierarchy)

	if lat.Valid && lon.Valid {
		m.Latitude = &lat.Float64
		m.Longitude = &lon.Float64
	}
	if photoCount.Valid {
		count := int(photoCount.Int64)
		m.PhotoCount = &count
	}
	if lastSynced.Valid {
		m.LastSyncedAt = lastSynced.Time
	}

	if props.Valid && props.String != "" {
		if err := json.Unmarshal([]byte(props.String), &m.Properties); err != nil {
			return nil, fmt.Errorf("failed to decode properties for %s: %w", m.WikidataID, err)
		}
	}

	return &m, nil
}

func scanPhotos(rows *sql.Rows) ([]*model.Photo, error) {
	var results []*model.Photo
	for rows.Next() {
		var p model.Photo
		var url, thumb, photographer, license sql.NullString
		var checked sql.NullTime
		err := rows.Scan(&p.Filename, &p.WikidataID, &url, &thumb,
			&photographer, &license, &p.IsFeatured, &p.IsUploadedViaApp, &checked, &p.CreatedAt)
		if err != nil {
			return nil, err
		}
		p.URL = strPtr(url)
		p.ThumbURL = strPtr(thumb)
		p.Photographer = strPtr(photographer)
		p.License = strPtr(license)
		if checked.Valid {
			p.MetadataCheckedAt = &checked.Time
		}
		results = append(results, &p)
	}
	return results, rows.Err()
}

func strPtr(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func nullStr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
