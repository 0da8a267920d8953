package syncer

import (
	"context"
	"log/slog"
	"time"

	"anitgo/pkg/commons"
	"anitgo/pkg/model"
	"anitgo/pkg/store"
	"anitgo/pkg/wikidata"
)

// Job is one incremental backfill worker. Run processes a single batch
// and reports how many records it handled; the scheduler uses that to
// decide whether a backlog remains.
type Job interface {
	Name() string
	Run(ctx context.Context) (processed int, err error)
}

// entityHealJob re-fetches incomplete records one entity at a time and
// heals their null fields. Which records qualify is the only difference
// between the description, commons, catalog-ID and comprehensive jobs.
type entityHealJob struct {
	name      string
	target    store.BackfillTarget
	store     store.MonumentStore
	entities  *wikidata.EntityFetcher
	batchSize int
	logger    *slog.Logger
}

// NewDescriptionJob backfills records missing descriptions.
func NewDescriptionJob(s store.MonumentStore, ef *wikidata.EntityFetcher, batchSize int, logger *slog.Logger) Job {
	return &entityHealJob{name: "descriptions", target: store.TargetDescriptions, store: s, entities: ef, batchSize: batchSize, logger: logger}
}

// NewCommonsJob backfills records missing a Commons category.
func NewCommonsJob(s store.MonumentStore, ef *wikidata.EntityFetcher, batchSize int, logger *slog.Logger) Job {
	return &entityHealJob{name: "commons", target: store.TargetCommons, store: s, entities: ef, batchSize: batchSize, logger: logger}
}

// NewKulturEnvanteriJob backfills records missing the external catalog ID.
func NewKulturEnvanteriJob(s store.MonumentStore, ef *wikidata.EntityFetcher, batchSize int, logger *slog.Logger) Job {
	return &entityHealJob{name: "kulturenvanteri", target: store.TargetKulturEnvanteri, store: s, entities: ef, batchSize: batchSize, logger: logger}
}

// NewComprehensiveJob sweeps every record with any gap at all.
func NewComprehensiveJob(s store.MonumentStore, ef *wikidata.EntityFetcher, batchSize int, logger *slog.Logger) Job {
	return &entityHealJob{name: "comprehensive", target: store.TargetComprehensive, store: s, entities: ef, batchSize: batchSize, logger: logger}
}

func (j *entityHealJob) Name() string { return j.name }

func (j *entityHealJob) Run(ctx context.Context) (int, error) {
	batch, err := j.store.ClaimBatch(ctx, j.target, j.batchSize)
	if err != nil {
		return 0, err
	}

	healed := 0
	for _, m := range batch {
		entity, err := j.entities.GetEntity(ctx, m.WikidataID)
		if err != nil {
			j.logger.Warn("backfill fetch failed", "job", j.name, "qid", m.WikidataID, "error", err)
			j.rotate(ctx, m.WikidataID)
			continue
		}
		changed, err := j.store.HealMonument(ctx, entity.Patch())
		if err != nil {
			j.logger.Error("backfill heal failed", "job", j.name, "qid", m.WikidataID, "error", err)
			continue
		}
		if changed {
			healed++
		}
	}
	if len(batch) > 0 {
		j.logger.Info("backfill batch done", "job", j.name, "claimed", len(batch), "healed", healed)
	}
	return len(batch), nil
}

// rotate touches the record's sync timestamp without changing data, so a
// persistently failing record drifts to the back of the claim order
// instead of wedging the queue head.
func (j *entityHealJob) rotate(ctx context.Context, qid string) {
	if _, err := j.store.HealMonument(ctx, &model.MonumentPatch{WikidataID: qid}); err != nil {
		j.logger.Error("backfill rotate failed", "job", j.name, "qid", qid, "error", err)
	}
}

// hierarchyJob resolves missing location hierarchies via SPARQL.
type hierarchyJob struct {
	store     store.MonumentStore
	resolver  *wikidata.HierarchyResolver
	batchSize int
	logger    *slog.Logger
}

// NewHierarchyJob backfills records whose location fields are unresolved.
func NewHierarchyJob(s store.MonumentStore, hr *wikidata.HierarchyResolver, batchSize int, logger *slog.Logger) Job {
	return &hierarchyJob{store: s, resolver: hr, batchSize: batchSize, logger: logger}
}

func (j *hierarchyJob) Name() string { return "hierarchy" }

func (j *hierarchyJob) Run(ctx context.Context) (int, error) {
	batch, err := j.store.ClaimBatch(ctx, store.TargetHierarchy, j.batchSize)
	if err != nil {
		return 0, err
	}

	for _, m := range batch {
		chain, err := j.resolver.Resolve(ctx, m.WikidataID)
		if err != nil {
			j.logger.Warn("hierarchy backfill failed", "qid", m.WikidataID, "error", err)
		}
		patch := HierarchyPatch(m.WikidataID, chain)
		if patch == nil {
			// No chain upstream either; touch the timestamp so the record
			// rotates out of the queue head.
			patch = &model.MonumentPatch{WikidataID: m.WikidataID}
		}
		if _, err := j.store.HealMonument(ctx, patch); err != nil {
			j.logger.Error("hierarchy heal failed", "qid", m.WikidataID, "error", err)
		}
	}
	return len(batch), nil
}

// photoJob lists each monument's Commons category and records its files.
type photoJob struct {
	store     store.Store
	commons   *commons.Client
	batchSize int
	logger    *slog.Logger
}

// NewPhotoJob discovers photos for monuments whose category has never
// been listed. An empty category still sets photo_count to zero, which
// is what takes the record out of this job's claim set.
func NewPhotoJob(s store.Store, c *commons.Client, batchSize int, logger *slog.Logger) Job {
	return &photoJob{store: s, commons: c, batchSize: batchSize, logger: logger}
}

func (j *photoJob) Name() string { return "photos" }

func (j *photoJob) Run(ctx context.Context) (int, error) {
	batch, err := j.store.ClaimBatch(ctx, store.TargetPhotos, j.batchSize)
	if err != nil {
		return 0, err
	}

	for _, m := range batch {
		if m.CommonsCategory == nil {
			continue
		}
		titles, err := j.commons.ListCategoryImages(ctx, *m.CommonsCategory)
		if err != nil {
			j.logger.Warn("photo listing failed", "qid", m.WikidataID, "category", *m.CommonsCategory, "error", err)
			if _, err := j.store.HealMonument(ctx, &model.MonumentPatch{WikidataID: m.WikidataID}); err != nil {
				j.logger.Error("photo rotate failed", "qid", m.WikidataID, "error", err)
			}
			continue
		}

		for _, title := range titles {
			photo := &model.Photo{
				Filename:   title,
				WikidataID: m.WikidataID,
				CreatedAt:  time.Now().UTC(),
			}
			if err := j.store.SavePhoto(ctx, photo); err != nil {
				j.logger.Error("photo save failed", "qid", m.WikidataID, "file", title, "error", err)
			}
		}

		if err := j.store.RefreshPhotoFlags(ctx, m.WikidataID); err != nil {
			j.logger.Error("photo flag refresh failed", "qid", m.WikidataID, "error", err)
		}
	}
	return len(batch), nil
}

// photoMetadataJob fills in URL and attribution for photos discovered by
// the listing job.
type photoMetadataJob struct {
	store     store.PhotoStore
	commons   *commons.Client
	batchSize int
	logger    *slog.Logger
}

// NewPhotoMetadataJob enriches photos that have no URL yet.
func NewPhotoMetadataJob(s store.PhotoStore, c *commons.Client, batchSize int, logger *slog.Logger) Job {
	return &photoMetadataJob{store: s, commons: c, batchSize: batchSize, logger: logger}
}

func (j *photoMetadataJob) Name() string { return "photo_metadata" }

func (j *photoMetadataJob) Run(ctx context.Context) (int, error) {
	photos, err := j.store.PhotosMissingMetadata(ctx, j.batchSize)
	if err != nil {
		return 0, err
	}
	if len(photos) == 0 {
		return 0, nil
	}

	titles := make([]string, 0, len(photos))
	byTitle := make(map[string]*model.Photo, len(photos))
	for _, p := range photos {
		titles = append(titles, p.Filename)
		byTitle[p.Filename] = p
	}

	infos, err := j.commons.GetImageInfo(ctx, titles)
	if err != nil {
		return 0, err
	}

	for title, info := range infos {
		p, ok := byTitle[title]
		if !ok {
			continue
		}
		if info.URL != "" {
			p.URL = &info.URL
		}
		if info.ThumbURL != "" {
			p.ThumbURL = &info.ThumbURL
		}
		if info.Photographer != "" {
			p.Photographer = &info.Photographer
		}
		if info.License != "" {
			p.License = &info.License
		}
	}

	// Save every claimed photo with a fresh check timestamp, whether or
	// not Commons returned attribution for it. A photo with empty
	// metadata upstream would otherwise stay at the queue head forever.
	now := time.Now().UTC()
	for _, p := range photos {
		p.MetadataCheckedAt = &now
		if err := j.store.SavePhoto(ctx, p); err != nil {
			j.logger.Error("photo metadata save failed", "file", p.Filename, "error", err)
		}
	}
	return len(photos), nil
}
