package driven

import (
	"context"

	"github.com/ericfisherdev/evolvesync/internal/domain/model"
)

// RunJournal defines the driven port for persisting run history. The
// journal is append-only: one row per completed synchronization run.
type RunJournal interface {
	Append(ctx context.Context, run model.RunRecord) error

	// ListRecent returns up to limit runs, most recent first.
	ListRecent(ctx context.Context, limit int) ([]model.RunRecord, error)
}
