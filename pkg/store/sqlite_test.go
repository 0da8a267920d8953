package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anitgo/pkg/db"
	"anitgo/pkg/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	database, err := db.Init(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	s := NewSQLiteStore(database)
	t.Cleanup(func() { s.Close() })
	return s
}

func sp(s string) *string { return &s }

func fp(f float64) *float64 { return &f }

func ayasofya() *model.MonumentPatch {
	return &model.MonumentPatch{
		WikidataID:        "Q406",
		NameTR:            sp("Ayasofya"),
		NameEN:            sp("Hagia Sophia"),
		KulturEnvanteriID: sp("34-001"),
		Latitude:          fp(41.0086),
		Longitude:         fp(28.98),
		Properties:        map[string]string{"instance_of": "Q32815"},
	}
}

func TestUpsertCreatesAndUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, needsHierarchy, err := s.UpsertMonument(ctx, ayasofya())
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, needsHierarchy, "fresh record has no hierarchy yet")

	created, _, err = s.UpsertMonument(ctx, ayasofya())
	require.NoError(t, err)
	assert.False(t, created, "second upsert of the same QID must update, not create")

	n, err := s.CountMonuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsertIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.UpsertMonument(ctx, ayasofya())
	require.NoError(t, err)
	first, err := s.GetMonument(ctx, "Q406")
	require.NoError(t, err)

	_, _, err = s.UpsertMonument(ctx, ayasofya())
	require.NoError(t, err)
	second, err := s.GetMonument(ctx, "Q406")
	require.NoError(t, err)

	assert.Equal(t, first.NameTR, second.NameTR)
	assert.Equal(t, first.Latitude, second.Latitude)
	assert.Equal(t, first.Properties, second.Properties)
	assert.Equal(t, first.CreatedAt, second.CreatedAt, "created_at must survive re-upsert")
}

func TestUpsertNullNeverClobbers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.UpsertMonument(ctx, ayasofya())
	require.NoError(t, err)

	// A later, sparser page row must not wipe the fields it lacks.
	_, _, err = s.UpsertMonument(ctx, &model.MonumentPatch{
		WikidataID: "Q406",
		NameTR:     sp("Ayasofya-i Kebir Camii"),
	})
	require.NoError(t, err)

	m, err := s.GetMonument(ctx, "Q406")
	require.NoError(t, err)
	assert.Equal(t, "Ayasofya-i Kebir Camii", *m.NameTR)
	require.NotNil(t, m.NameEN, "missing patch field cleared an existing value")
	assert.Equal(t, "Hagia Sophia", *m.NameEN)
	require.NotNil(t, m.Latitude)
	assert.Equal(t, 41.0086, *m.Latitude)
}

func TestUpsertPropertiesMerge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.UpsertMonument(ctx, ayasofya())
	require.NoError(t, err)

	_, _, err = s.UpsertMonument(ctx, &model.MonumentPatch{
		WikidataID: "Q406",
		Properties: map[string]string{"image": "File:New.jpg"},
	})
	require.NoError(t, err)

	m, err := s.GetMonument(ctx, "Q406")
	require.NoError(t, err)
	assert.Equal(t, "Q32815", m.Properties["instance_of"], "existing key dropped by merge")
	assert.Equal(t, "File:New.jpg", m.Properties["image"])
}

func TestUpsertHierarchySignal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, needsHierarchy, err := s.UpsertMonument(ctx, &model.MonumentPatch{
		WikidataID:          "Q1",
		LocationHierarchyTR: sp("Fatih, İstanbul"),
	})
	require.NoError(t, err)
	assert.False(t, needsHierarchy)

	_, needsHierarchy, err = s.UpsertMonument(ctx, &model.MonumentPatch{WikidataID: "Q1"})
	require.NoError(t, err)
	assert.False(t, needsHierarchy, "resolved hierarchy must not be re-requested")
}

func TestGetMonumentMissing(t *testing.T) {
	s := newTestStore(t)
	m, err := s.GetMonument(context.Background(), "Q404")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestHealOneDirectional(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.UpsertMonument(ctx, &model.MonumentPatch{
		WikidataID: "Q406",
		NameTR:     sp("Ayasofya"),
	})
	require.NoError(t, err)

	changed, err := s.HealMonument(ctx, &model.MonumentPatch{
		WikidataID:    "Q406",
		NameTR:        sp("Başka Ad"),
		DescriptionTR: sp("açıklama"),
	})
	require.NoError(t, err)
	assert.True(t, changed)

	m, err := s.GetMonument(ctx, "Q406")
	require.NoError(t, err)
	assert.Equal(t, "Ayasofya", *m.NameTR, "heal must not overwrite present values")
	assert.Equal(t, "açıklama", *m.DescriptionTR)
}

func TestHealTouchesTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.UpsertMonument(ctx, ayasofya())
	require.NoError(t, err)
	before, err := s.GetMonument(ctx, "Q406")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	changed, err := s.HealMonument(ctx, &model.MonumentPatch{WikidataID: "Q406"})
	require.NoError(t, err)
	assert.False(t, changed)

	after, err := s.GetMonument(ctx, "Q406")
	require.NoError(t, err)
	assert.True(t, after.LastSyncedAt.After(before.LastSyncedAt),
		"no-op heal must still rotate the record in the claim order")
}

func TestHealUnknownRecord(t *testing.T) {
	s := newTestStore(t)
	_, err := s.HealMonument(context.Background(), &model.MonumentPatch{WikidataID: "Q404"})
	assert.Error(t, err)
}

func TestClaimBatchTargets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.UpsertMonument(ctx, &model.MonumentPatch{
		WikidataID:        "Q1",
		KulturEnvanteriID: sp("1"),
	})
	require.NoError(t, err)
	_, _, err = s.UpsertMonument(ctx, &model.MonumentPatch{
		WikidataID:        "Q2",
		KulturEnvanteriID: sp("2"),
		DescriptionTR:     sp("tam"),
	})
	require.NoError(t, err)
	_, _, err = s.UpsertMonument(ctx, &model.MonumentPatch{WikidataID: "Q3"})
	require.NoError(t, err)

	batch, err := s.ClaimBatch(ctx, TargetDescriptions, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1, "only records with a catalog ID and no description qualify")
	assert.Equal(t, "Q1", batch[0].WikidataID)

	batch, err = s.ClaimBatch(ctx, TargetKulturEnvanteri, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "Q3", batch[0].WikidataID)
}

func TestClaimBatchOldestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.UpsertMonument(ctx, &model.MonumentPatch{WikidataID: "Q1", KulturEnvanteriID: sp("1")})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, _, err = s.UpsertMonument(ctx, &model.MonumentPatch{WikidataID: "Q2", KulturEnvanteriID: sp("2")})
	require.NoError(t, err)

	batch, err := s.ClaimBatch(ctx, TargetDescriptions, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "Q1", batch[0].WikidataID, "stalest record claimed first")

	// Rotating Q1 moves Q2 to the head.
	_, err = s.HealMonument(ctx, &model.MonumentPatch{WikidataID: "Q1"})
	require.NoError(t, err)

	batch, err = s.ClaimBatch(ctx, TargetDescriptions, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "Q2", batch[0].WikidataID)
}

func TestLockExclusive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.AcquireLock(ctx, "wikidata_full_sync", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AcquireLock(ctx, "wikidata_full_sync", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "second acquisition must be refused while the lock is live")

	require.NoError(t, s.ReleaseLock(ctx, "wikidata_full_sync"))

	ok, err = s.AcquireLock(ctx, "wikidata_full_sync", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "released lock must be acquirable again")
}

func TestLockExpires(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.AcquireLock(ctx, "stale", time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(10 * time.Millisecond)

	ok, err = s.AcquireLock(ctx, "stale", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "a crashed holder's lapsed TTL must not wedge the lock forever")
}

func TestLockNamesIndependent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.AcquireLock(ctx, "a", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.AcquireLock(ctx, "b", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPhotosAndFlags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.UpsertMonument(ctx, &model.MonumentPatch{
		WikidataID:      "Q406",
		CommonsCategory: sp("Hagia Sophia"),
	})
	require.NoError(t, err)

	// Category listed; record qualifies for the photo job.
	batch, err := s.ClaimBatch(ctx, TargetPhotos, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	require.NoError(t, s.SavePhoto(ctx, &model.Photo{Filename: "File:A.jpg", WikidataID: "Q406"}))
	require.NoError(t, s.SavePhoto(ctx, &model.Photo{Filename: "File:B.jpg", WikidataID: "Q406"}))
	// Same filename again must not duplicate.
	require.NoError(t, s.SavePhoto(ctx, &model.Photo{Filename: "File:A.jpg", WikidataID: "Q406"}))

	require.NoError(t, s.RefreshPhotoFlags(ctx, "Q406"))

	m, err := s.GetMonument(ctx, "Q406")
	require.NoError(t, err)
	assert.True(t, m.HasPhotos)
	require.NotNil(t, m.PhotoCount)
	assert.Equal(t, 2, *m.PhotoCount)

	photos, err := s.GetPhotos(ctx, "Q406")
	require.NoError(t, err)
	assert.Len(t, photos, 2)

	// photo_count set takes the record out of the photo claim set.
	batch, err = s.ClaimBatch(ctx, TargetPhotos, 10)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestPhotosMissingMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePhoto(ctx, &model.Photo{Filename: "File:Bare.jpg", WikidataID: "Q1"}))
	require.NoError(t, s.SavePhoto(ctx, &model.Photo{
		Filename: "File:Full.jpg", WikidataID: "Q1",
		Photographer: sp("Someone"), License: sp("CC BY-SA 4.0"),
	}))

	missing, err := s.PhotosMissingMetadata(ctx, 10)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "File:Bare.jpg", missing[0].Filename)
}

func TestPhotosMissingMetadataClaimOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	checked := time.Now().UTC()
	require.NoError(t, s.SavePhoto(ctx, &model.Photo{
		Filename: "File:Attempted.jpg", WikidataID: "Q1",
		MetadataCheckedAt: &checked,
	}))
	require.NoError(t, s.SavePhoto(ctx, &model.Photo{Filename: "File:Untried.jpg", WikidataID: "Q1"}))

	// A photo whose last fetch came back empty waits behind the
	// never-attempted ones.
	missing, err := s.PhotosMissingMetadata(ctx, 1)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "File:Untried.jpg", missing[0].Filename)

	photos, err := s.GetPhotos(ctx, "Q1")
	require.NoError(t, err)
	require.Len(t, photos, 2)
	for _, p := range photos {
		if p.Filename == "File:Attempted.jpg" {
			require.NotNil(t, p.MetadataCheckedAt)
			assert.WithinDuration(t, checked, *p.MetadataCheckedAt, time.Second)
		} else {
			assert.Nil(t, p.MetadataCheckedAt)
		}
	}
}

func TestState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok := s.GetState(ctx, "nope")
	assert.False(t, ok)

	require.NoError(t, s.SetState(ctx, "last_sync_run", `{"run_id":"abc"}`))
	val, ok := s.GetState(ctx, "last_sync_run")
	assert.True(t, ok)
	assert.Equal(t, `{"run_id":"abc"}`, val)

	require.NoError(t, s.SetState(ctx, "last_sync_run", "v2"))
	val, _ = s.GetState(ctx, "last_sync_run")
	assert.Equal(t, "v2", val)
}

func TestDistinctIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, qid := range []string{"Q1", "Q2", "Q3"} {
		_, _, err := s.UpsertMonument(ctx, &model.MonumentPatch{WikidataID: qid})
		require.NoError(t, err)
	}
	ids, err := s.DistinctIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Q1", "Q2", "Q3"}, ids)
}
