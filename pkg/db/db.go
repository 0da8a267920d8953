package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Register driver
)

// DB wraps the sql.DB connection.
type DB struct {
	*sql.DB
}

// Init opens the database and runs migrations.
func Init(path string) (*DB, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// Enable WAL mode for better concurrency and set busy timeout
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	d := &DB{db}
	// Enforce single connection to avoid SQLITE_BUSY errors during concurrent writes
	db.SetMaxOpenConns(1)

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return d, nil
}

func (d *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS monuments (
			wikidata_id TEXT PRIMARY KEY,
			name_tr TEXT,
			name_en TEXT,
			description_tr TEXT,
			description_en TEXT,
			aka TEXT,
			kulturenvanteri_id TEXT,
			commons_category TEXT,
			commons_url TEXT,
			wikipedia_url TEXT,
			wikidata_url TEXT,
			latitude REAL,
			longitude REAL,
			city TEXT,
			district TEXT,
			province TEXT,
			location_hierarchy_tr TEXT,
			has_photos BOOLEAN DEFAULT 0,
			photo_count INTEGER,
			properties TEXT,
			last_synced_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_monuments_last_synced ON monuments(last_synced_at);`,
		`CREATE INDEX IF NOT EXISTS idx_monuments_kulturenvanteri ON monuments(kulturenvanteri_id);`,
		`CREATE TABLE IF NOT EXISTS photos (
			filename TEXT PRIMARY KEY,
			wikidata_id TEXT NOT NULL,
			url TEXT,
			thumb_url TEXT,
			photographer TEXT,
			license TEXT,
			is_featured BOOLEAN DEFAULT 0,
			is_uploaded_via_app BOOLEAN DEFAULT 0,
			metadata_checked_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_photos_monument ON photos(wikidata_id);`,
		`CREATE TABLE IF NOT EXISTS sync_locks (
			name TEXT PRIMARY KEY,
			acquired_at DATETIME,
			expires_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS persistent_state (
			key TEXT PRIMARY KEY,
			value TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}

	for _, q := range queries {
		if _, err := d.Exec(q); err != nil {
			return fmt.Errorf("exec error: %w query: %s", err, q)
		}
	}

	return nil
}
