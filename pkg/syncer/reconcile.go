package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"anitgo/pkg/sparql"
	"anitgo/pkg/store"
	"anitgo/pkg/wikidata"
)

// Reconciler compares the endpoint's authoritative view of the catalog
// against the local store and reports the gap.
type Reconciler struct {
	store  store.MonumentStore
	sparql *sparql.Client
	logger *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(s store.MonumentStore, sp *sparql.Client, logger *slog.Logger) *Reconciler {
	return &Reconciler{store: s, sparql: sp, logger: logger}
}

// Report is the outcome of one reconciliation pass.
type Report struct {
	Expected int
	Local    int
	Missing  []string
	Pass     bool
}

// ExpectedCount asks the endpoint for the authoritative distinct count.
func (r *Reconciler) ExpectedCount(ctx context.Context) (int, error) {
	bindings, err := r.sparql.Query(ctx, wikidata.CountQuery())
	if err != nil {
		return 0, fmt.Errorf("count query: %w", err)
	}
	if len(bindings) == 0 {
		return 0, fmt.Errorf("count query returned no rows")
	}
	n, err := strconv.Atoi(bindings[0].Val("count"))
	if err != nil {
		return 0, fmt.Errorf("parse count %q: %w", bindings[0].Val("count"), err)
	}
	return n, nil
}

// MissingIDs pages the endpoint's full subject-ID listing and diffs it
// against the local store, returning IDs present upstream but absent
// locally. Paging ends on the first short page.
func (r *Reconciler) MissingIDs(ctx context.Context, pageSize int) ([]string, error) {
	if pageSize <= 0 {
		pageSize = 5000
	}

	remote := make(map[string]bool)
	offset := 0
	for {
		bindings, err := r.sparql.Query(ctx, wikidata.IDListQuery(offset, pageSize))
		if err != nil {
			return nil, fmt.Errorf("id page at offset %d: %w", offset, err)
		}
		for _, b := range bindings {
			if qid := wikidata.ExtractQID(b.Val("item")); qid != "" {
				remote[qid] = true
			}
		}
		if len(bindings) < pageSize {
			break
		}
		offset += pageSize
	}

	local, err := r.store.DistinctIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("local ids: %w", err)
	}
	for _, qid := range local {
		delete(remote, qid)
	}

	missing := make([]string, 0, len(remote))
	for qid := range remote {
		missing = append(missing, qid)
	}
	return missing, nil
}

// Check runs a full reconciliation pass. The pass criterion is local
// coverage at or above the authoritative count; an expected count of
// zero always fails, since it means the endpoint query itself is broken.
func (r *Reconciler) Check(ctx context.Context, pageSize int) (*Report, error) {
	expected, err := r.ExpectedCount(ctx)
	if err != nil {
		return nil, err
	}

	local, err := r.store.CountMonuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("local count: %w", err)
	}

	missing, err := r.MissingIDs(ctx, pageSize)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Expected: expected,
		Local:    local,
		Missing:  missing,
		Pass:     expected > 0 && local >= expected,
	}
	r.logger.Info("reconciliation finished",
		"expected", report.Expected,
		"local", report.Local,
		"missing", len(report.Missing),
		"pass", report.Pass)
	return report, nil
}
