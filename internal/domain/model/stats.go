package model

import "time"

// RunStats aggregates the counters for one synchronization run. A completed
// run always reports these, even when every account failed.
type RunStats struct {
	AccountsProcessed   int
	NewRecords          int
	ArtifactsDownloaded int
	Errors              int
}

// RunRecord is one journaled run: RunStats plus identity and timing.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Stats      RunStats
}
