package tracker

import (
	"sync"
	"sync/atomic"
)

// Tracker tracks upstream usage statistics per provider.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*ProviderStats
}

// ProviderStats holds metrics for a specific provider.
// Fields are accessed atomically.
type ProviderStats struct {
	APISuccess  int64
	APIFailures int64
	EmptyPages  int64
	LabelHits   int64
	LabelMisses int64
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*ProviderStats),
	}
}

// getStats returns the stats object for a provider, creating it if needed.
func (t *Tracker) getStats(provider string) *ProviderStats {
	t.mu.RLock()
	s, ok := t.stats[provider]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Double check
	if s, ok = t.stats[provider]; ok {
		return s
	}
	s = &ProviderStats{}
	t.stats[provider] = s
	return s
}

func (t *Tracker) TrackAPISuccess(provider string) {
	atomic.AddInt64(&t.getStats(provider).APISuccess, 1)
}

func (t *Tracker) TrackAPIFailure(provider string) {
	atomic.AddInt64(&t.getStats(provider).APIFailures, 1)
}

// TrackEmptyPage records a valid but empty result page.
func (t *Tracker) TrackEmptyPage(provider string) {
	atomic.AddInt64(&t.getStats(provider).EmptyPages, 1)
}

func (t *Tracker) TrackLabelHit(provider string) {
	atomic.AddInt64(&t.getStats(provider).LabelHits, 1)
}

func (t *Tracker) TrackLabelMiss(provider string) {
	atomic.AddInt64(&t.getStats(provider).LabelMisses, 1)
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]ProviderStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]ProviderStats)
	for k, v := range t.stats {
		result[k] = ProviderStats{
			APISuccess:  atomic.LoadInt64(&v.APISuccess),
			APIFailures: atomic.LoadInt64(&v.APIFailures),
			EmptyPages:  atomic.LoadInt64(&v.EmptyPages),
			LabelHits:   atomic.LoadInt64(&v.LabelHits),
			LabelMisses: atomic.LoadInt64(&v.LabelMisses),
		}
	}
	return result
}
