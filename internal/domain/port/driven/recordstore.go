package driven

import (
	"context"

	"github.com/ericfisherdev/evolvesync/internal/domain/model"
)

// RecordStore defines the driven port for durable result persistence.
// The store is a flat ordered record set: every mutation cycle loads,
// mutates in memory, and saves back entirely. Saves must be atomic
// (write-temp-then-rename) so a crash never leaves a half-written file.
type RecordStore interface {
	// Initialize creates an empty store with the canonical column order if
	// none exists; no-op otherwise.
	Initialize(ctx context.Context) error

	// Load returns all records, applying legacy column-rename aliases before
	// anything is hashed or merged. An absent file yields an empty slice.
	Load(ctx context.Context) ([]model.Record, error)

	// Save rewrites the store with exactly the given records.
	Save(ctx context.Context, records []model.Record) error
}
