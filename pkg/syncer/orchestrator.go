package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"anitgo/pkg/config"
	"anitgo/pkg/model"
	"anitgo/pkg/sparql"
	"anitgo/pkg/store"
	"anitgo/pkg/tracker"
	"anitgo/pkg/wikidata"
)

// lockName guards the bulk sync entry point. Whoever holds it owns the
// full run; a second invocation (CLI or scheduler) skips instead of
// interleaving pages.
const lockName = "wikidata_full_sync"

// stateLastRun is the persistent-state key holding the last run summary.
const stateLastRun = "last_sync_run"

// Orchestrator drives the paged bulk synchronization from the SPARQL
// endpoint into the local store.
type Orchestrator struct {
	store    store.Store
	sparql   *sparql.Client
	entities *wikidata.EntityFetcher
	resolver *wikidata.HierarchyResolver
	tracker  *tracker.Tracker
	cfg      config.SyncConfig
	logger   *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(s store.Store, sp *sparql.Client, ef *wikidata.EntityFetcher, hr *wikidata.HierarchyResolver, t *tracker.Tracker, cfg config.SyncConfig, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:    s,
		sparql:   sp,
		entities: ef,
		resolver: hr,
		tracker:  t,
		cfg:      cfg,
		logger:   logger,
	}
}

// Options tunes one bulk run. Zero values fall back to configuration.
type Options struct {
	BatchSize  int
	MaxBatches int
	Progress   ProgressFunc
}

// RunResult summarizes a finished bulk run.
type RunResult struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Batches    int           `json:"batches"`
	Seen       int           `json:"seen"`
	New        int           `json:"new"`
	Updated    int           `json:"updated"`
	Errors     int           `json:"errors"`
	Filtered   int           `json:"filtered"`
	StopReason string        `json:"stop_reason"`
}

// ErrSyncRunning is returned when the advisory lock is already held.
var ErrSyncRunning = fmt.Errorf("a sync run is already in progress")

// Run executes the full paged sync. It acquires the advisory lock first
// and skips with ErrSyncRunning when another run holds it. Per-row
// failures are counted and logged but never abort the run; a failed
// page fetch does, with StopFailed recorded so the run is not mistaken
// for a completed one.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*RunResult, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = o.cfg.BatchSize
	}
	maxBatches := opts.MaxBatches
	if maxBatches == 0 {
		maxBatches = o.cfg.MaxBatches
	}
	progress := opts.Progress
	if progress == nil {
		progress = func(Progress) {}
	}

	ok, err := o.store.AcquireLock(ctx, lockName, time.Duration(o.cfg.LockTTL))
	if err != nil {
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		o.logger.Warn("sync skipped, lock held by another run", "lock", lockName)
		return nil, ErrSyncRunning
	}
	defer func() {
		if err := o.store.ReleaseLock(context.WithoutCancel(ctx), lockName); err != nil {
			o.logger.Error("failed to release sync lock", "lock", lockName, "error", err)
		}
	}()

	result := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	o.logger.Info("bulk sync starting", "run_id", result.RunID, "batch_size", batchSize)

	offset := 0
	var runErr error

loop:
	for batch := 1; ; batch++ {
		if maxBatches > 0 && batch > maxBatches {
			result.StopReason = StopMaxBatches
			break
		}

		progress(Progress{Event: EventStartBatch, Batch: batch, Offset: offset, Limit: batchSize})

		bindings, err := o.sparql.Query(ctx, wikidata.BulkPageQuery(offset, batchSize))
		if err != nil {
			// Transport failure, not an empty listing. Ending here with
			// StopFailed keeps the run distinguishable from "exhausted".
			result.StopReason = StopFailed
			runErr = fmt.Errorf("fetch page at offset %d: %w", offset, err)
			o.logger.Error("bulk sync page failed", "run_id", result.RunID, "batch", batch, "offset", offset, "error", err)
			break
		}

		if len(bindings) == 0 {
			o.tracker.TrackEmptyPage("wikidata")
			result.StopReason = StopExhausted
			break
		}

		batchNew, batchUpdated, batchErrors, batchFiltered := 0, 0, 0, 0
		var examples []string

		for _, b := range bindings {
			result.Seen++
			patch := wikidata.MapBinding(b)
			if patch == nil {
				// Row without a usable entity ID; counted so the
				// mapped-vs-seen gap shows up instead of vanishing.
				batchFiltered++
				continue
			}

			created, needsHierarchy, err := o.store.UpsertMonument(ctx, patch)
			if err != nil {
				batchErrors++
				o.logger.Error("upsert failed", "qid", patch.WikidataID, "error", err)
				continue
			}
			if created {
				batchNew++
			} else {
				batchUpdated++
			}
			if len(examples) < 3 {
				examples = append(examples, displayName(patch))
			}

			if needsHierarchy {
				o.resolveHierarchy(ctx, patch.WikidataID)
			}
		}

		result.Batches = batch
		result.New += batchNew
		result.Updated += batchUpdated
		result.Errors += batchErrors
		result.Filtered += batchFiltered

		progress(Progress{
			Event:         EventEndBatch,
			Batch:         batch,
			Offset:        offset,
			Limit:         batchSize,
			New:           batchNew,
			Updated:       batchUpdated,
			Errors:        batchErrors,
			Filtered:      batchFiltered,
			TotalSeen:     result.Seen,
			TotalNew:      result.New,
			TotalUpdated:  result.Updated,
			TotalErrors:   result.Errors,
			TotalFiltered: result.Filtered,
			LastStatus:    o.sparql.LastStatus(),
			Examples:      examples,
		})

		if len(bindings) < batchSize {
			result.StopReason = StopShortPage
			break
		}

		offset += batchSize

		select {
		case <-ctx.Done():
			result.StopReason = StopFailed
			runErr = ctx.Err()
			break loop
		case <-time.After(time.Duration(o.cfg.BatchPause)):
		}
	}

	result.Duration = time.Since(result.StartedAt)
	o.saveRunSummary(ctx, result)

	progress(Progress{
		Event:         EventComplete,
		Batch:         result.Batches,
		TotalSeen:     result.Seen,
		TotalNew:      result.New,
		TotalUpdated:  result.Updated,
		TotalErrors:   result.Errors,
		TotalFiltered: result.Filtered,
		LastStatus:    o.sparql.LastStatus(),
		StopReason:    result.StopReason,
	})
	o.logger.Info("bulk sync finished",
		"run_id", result.RunID,
		"stop_reason", result.StopReason,
		"batches", result.Batches,
		"seen", result.Seen,
		"new", result.New,
		"updated", result.Updated,
		"errors", result.Errors,
		"filtered", result.Filtered,
		"duration", result.Duration.Round(time.Second))

	return result, runErr
}

// SyncOne refreshes a single monument through the entity API, outside
// the bulk path and without the advisory lock.
func (o *Orchestrator) SyncOne(ctx context.Context, qid string) (*model.Monument, error) {
	entity, err := o.entities.GetEntity(ctx, qid)
	if err != nil {
		return nil, err
	}

	patch := entity.Patch()
	_, needsHierarchy, err := o.store.UpsertMonument(ctx, patch)
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", qid, err)
	}
	if needsHierarchy {
		o.resolveHierarchy(ctx, patch.WikidataID)
	}
	return o.store.GetMonument(ctx, patch.WikidataID)
}

// SyncMissing pulls the reconciliation diff and syncs up to limit
// monuments the endpoint knows about but the store does not.
func (o *Orchestrator) SyncMissing(ctx context.Context, missing []string, limit int) (int, error) {
	if limit > 0 && len(missing) > limit {
		missing = missing[:limit]
	}
	synced := 0
	for _, qid := range missing {
		if _, err := o.SyncOne(ctx, qid); err != nil {
			o.logger.Error("targeted sync failed", "qid", qid, "error", err)
			continue
		}
		synced++
	}
	return synced, nil
}

// resolveHierarchy fills the location fields from the administrative
// containment chain. Failures are logged and swallowed; the record stays
// eligible for the hierarchy backfill job.
func (o *Orchestrator) resolveHierarchy(ctx context.Context, qid string) {
	chain, err := o.resolver.Resolve(ctx, qid)
	if err != nil {
		o.logger.Warn("hierarchy resolution failed", "qid", qid, "error", err)
		return
	}
	patch := HierarchyPatch(qid, chain)
	if patch == nil {
		return
	}
	if _, _, err := o.store.UpsertMonument(ctx, patch); err != nil {
		o.logger.Error("hierarchy update failed", "qid", qid, "error", err)
	}
}

// HierarchyPatch maps a containment chain (nearest first) onto the
// location fields: district is the nearest unit, province the broadest,
// city the level just under the province. Returns nil for an empty chain.
func HierarchyPatch(qid string, chain []string) *model.MonumentPatch {
	if len(chain) == 0 {
		return nil
	}
	joined := strings.Join(chain, ", ")
	p := &model.MonumentPatch{
		WikidataID:          qid,
		District:            &chain[0],
		Province:            &chain[len(chain)-1],
		LocationHierarchyTR: &joined,
	}
	if len(chain) >= 2 {
		p.City = &chain[len(chain)-2]
	} else {
		p.City = &chain[0]
	}
	return p
}

func (o *Orchestrator) saveRunSummary(ctx context.Context, r *RunResult) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := o.store.SetState(context.WithoutCancel(ctx), stateLastRun, string(data)); err != nil {
		o.logger.Warn("failed to persist run summary", "error", err)
	}
}

func displayName(p *model.MonumentPatch) string {
	if p.NameTR != nil {
		return *p.NameTR
	}
	if p.NameEN != nil {
		return *p.NameEN
	}
	return p.WikidataID
}
