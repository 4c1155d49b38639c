package domain

// SyncResult reports the outcome of one synchronisation pass for a single
// connection. Per-item failures are collected rather than aborting the pass.
type SyncResult struct {
	// Imported counts newly inserted local rows.
	Imported int
	// Updated counts rows rewritten because an eligible field changed.
	Updated int
	// Deleted counts rows removed after a remote cancellation.
	Deleted int
	// Skipped counts items that required no write.
	Skipped int
	// FullSync is true when the pass ran the windowed full-sync path,
	// either initially or as a cursor-invalidation fallback.
	FullSync bool
	// Errors holds per-item failure descriptions. The pass continued past
	// each of them.
	Errors []string
}

// Add folds another result into this one. Used when a delta pass falls back
// to a full sync within the same invocation.
func (r *SyncResult) Add(other *SyncResult) {
	if other == nil {
		return
	}
	r.Imported += other.Imported
	r.Updated += other.Updated
	r.Deleted += other.Deleted
	r.Skipped += other.Skipped
	r.FullSync = r.FullSync || other.FullSync
	r.Errors = append(r.Errors, other.Errors...)
}

// Writes returns the number of effective local writes in the pass.
func (r *SyncResult) Writes() int {
	return r.Imported + r.Updated + r.Deleted
}

// SweepResult accumulates per-connection outcomes of a scheduled sweep.
// One connection's failure never aborts the sweep for the others.
type SweepResult struct {
	// Total is the number of connected connections considered.
	Total int
	// Synced counts connections that completed a sync pass.
	Synced int
	// Skipped counts connections passed over by the rate-limit check.
	Skipped int
	// Errors counts connections whose sync failed.
	Errors int
}
