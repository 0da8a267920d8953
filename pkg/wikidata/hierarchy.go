package wikidata

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"anitgo/pkg/sparql"
)

// HierarchyResolver walks the administrative containment chain (P131)
// of a place, narrowest first. Labels come back localized Turkish with
// an English fallback.
type HierarchyResolver struct {
	sparql *sparql.Client
	logger *slog.Logger
}

// NewHierarchyResolver creates a HierarchyResolver.
func NewHierarchyResolver(c *sparql.Client, logger *slog.Logger) *HierarchyResolver {
	return &HierarchyResolver{sparql: c, logger: logger}
}

// Resolve returns the containment chain for a QID, e.g.
// ["Yeşilyurt", "Malatya"]. Consecutive levels that resolve to the
// same label are collapsed to the first occurrence. A malformed ID
// returns an empty chain without touching the network.
func (r *HierarchyResolver) Resolve(ctx context.Context, qid string) ([]string, error) {
	qid = strings.TrimSpace(qid)
	if !qidPattern.MatchString(qid) {
		return nil, nil
	}
	// Entity IRIs are case sensitive; wd:q406 resolves to nothing.
	qid = strings.ToUpper(qid)

	bindings, err := r.sparql.Query(ctx, hierarchyQuery(qid))
	if err != nil {
		return nil, fmt.Errorf("resolve hierarchy for %s: %w", qid, err)
	}

	type leveled struct {
		level int
		label string
	}
	var rows []leveled
	for _, b := range bindings {
		lvl, err := strconv.Atoi(b.Val("level"))
		if err != nil {
			continue
		}
		label := b.Val("placeLabel")
		// The label service hands back the bare QID or an entity URI
		// when no label exists in our languages; neither is a place name.
		if label == "" || qidPattern.MatchString(label) || isURI(label) {
			continue
		}
		rows = append(rows, leveled{level: lvl, label: label})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].level < rows[j].level })

	var chain []string
	seen := make(map[string]bool)
	for _, row := range rows {
		if seen[row.label] {
			continue
		}
		seen[row.label] = true
		chain = append(chain, row.label)
	}

	if len(chain) == 0 {
		r.logger.Debug("no administrative hierarchy found", "qid", qid)
	}
	return chain, nil
}
