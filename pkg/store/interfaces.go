package store

import (
	"context"
	"time"

	"anitgo/pkg/model"
)

// BackfillTarget selects one class of incomplete record for a batch claim.
type BackfillTarget int

const (
	TargetDescriptions BackfillTarget = iota
	TargetHierarchy
	TargetCommons
	TargetKulturEnvanteri
	TargetPhotos
	TargetComprehensive
)

// String returns the target name used in logs.
func (t BackfillTarget) String() string {
	switch t {
	case TargetDescriptions:
		return "descriptions"
	case TargetHierarchy:
		return "hierarchy"
	case TargetCommons:
		return "commons"
	case TargetKulturEnvanteri:
		return "kulturenvanteri"
	case TargetPhotos:
		return "photos"
	case TargetComprehensive:
		return "comprehensive"
	default:
		return "unknown"
	}
}

// MonumentStore handles monument persistence.
type MonumentStore interface {
	// GetMonument returns nil, nil when the record does not exist.
	GetMonument(ctx context.Context, wikidataID string) (*model.Monument, error)

	// UpsertMonument merges the patch into the record (incoming non-nil
	// fields win, properties union) and refreshes last_synced_at. It
	// reports whether the record was created and whether its location
	// hierarchy is still unresolved after the merge.
	UpsertMonument(ctx context.Context, patch *model.MonumentPatch) (created, needsHierarchy bool, err error)

	// HealMonument fills only currently-null fields from the patch and
	// refreshes last_synced_at even when nothing changed, so empty-result
	// records rotate out of the head of the backfill queue.
	HealMonument(ctx context.Context, patch *model.MonumentPatch) (changed bool, err error)

	// ClaimBatch returns up to limit records matching the target's
	// missing-field predicate, oldest-synced first.
	ClaimBatch(ctx context.Context, target BackfillTarget, limit int) ([]*model.Monument, error)

	CountMonuments(ctx context.Context) (int, error)
	DistinctIDs(ctx context.Context) ([]string, error)
	ListMonuments(ctx context.Context, limit, offset int) ([]*model.Monument, error)
}

// PhotoStore handles Commons photo persistence.
type PhotoStore interface {
	SavePhoto(ctx context.Context, p *model.Photo) error
	GetPhotos(ctx context.Context, wikidataID string) ([]*model.Photo, error)

	// PhotosMissingMetadata returns photos lacking attribution, least
	// recently attempted first.
	PhotosMissingMetadata(ctx context.Context, limit int) ([]*model.Photo, error)

	// RefreshPhotoFlags recomputes has_photos/photo_count on the monument
	// from its photo rows.
	RefreshPhotoFlags(ctx context.Context, wikidataID string) error
}

// LockStore provides the named, TTL-bounded advisory lock guarding the
// bulk sync entry point.
type LockStore interface {
	// AcquireLock returns false (without error) when the lock is already
	// held and not yet expired.
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name string) error
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
}

// Store composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	MonumentStore
	PhotoStore
	LockStore
	StateStore

	// Close closes the store connection.
	Close() error
}
