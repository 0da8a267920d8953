package syncer

// Progress event kinds emitted during a bulk run.
const (
	EventStartBatch = "start_batch"
	EventEndBatch   = "end_batch"
	EventComplete   = "complete"
)

// Stop reasons recorded on a finished run. A short or empty page means
// the listing is exhausted; "failed" means a page could not be fetched
// and the run ended early with records still unseen.
const (
	StopExhausted  = "exhausted"
	StopShortPage  = "short_page"
	StopMaxBatches = "max_batches"
	StopFailed     = "failed"
)

// Progress is a snapshot handed to the progress callback after every
// batch. Totals are cumulative across the run.
type Progress struct {
	Event  string
	Batch  int
	Offset int
	Limit  int

	New      int
	Updated  int
	Errors   int
	Filtered int

	TotalSeen     int
	TotalNew      int
	TotalUpdated  int
	TotalErrors   int
	TotalFiltered int

	// LastStatus is the most recent upstream HTTP status, surfaced so a
	// stalling run is diagnosable from the console.
	LastStatus int

	// Examples holds up to three display names from the batch.
	Examples []string

	StopReason string
}

// ProgressFunc receives progress events. It is called from the run
// goroutine and must not block for long.
type ProgressFunc func(Progress)
