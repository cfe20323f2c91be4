package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/evolvesync/internal/domain/model"
	"github.com/ericfisherdev/evolvesync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RunJournal = (*RunJournalRepo)(nil)

// RunJournalRepo is the SQLite implementation of the RunJournal port.
type RunJournalRepo struct {
	db *DB
}

// NewRunJournalRepo creates a new RunJournalRepo backed by the given DB.
func NewRunJournalRepo(db *DB) *RunJournalRepo {
	return &RunJournalRepo{db: db}
}

// Append records one completed run. Timestamps are stored as RFC 3339 text.
func (r *RunJournalRepo) Append(ctx context.Context, run model.RunRecord) error {
	const query = `
		INSERT INTO runs (
			id, started_at, finished_at,
			accounts_processed, new_records, artifacts_downloaded, errors
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Writer.ExecContext(ctx, query,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		run.Stats.AccountsProcessed,
		run.Stats.NewRecords,
		run.Stats.ArtifactsDownloaded,
		run.Stats.Errors,
	)
	if err != nil {
		return fmt.Errorf("append run %q: %w", run.ID, err)
	}
	return nil
}

// ListRecent returns up to limit runs, most recent first.
func (r *RunJournalRepo) ListRecent(ctx context.Context, limit int) ([]model.RunRecord, error) {
	const query = `
		SELECT id, started_at, finished_at,
		       accounts_processed, new_records, artifacts_downloaded, errors
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var run model.RunRecord
		var startedAt, finishedAt string
		if err := rows.Scan(
			&run.ID, &startedAt, &finishedAt,
			&run.Stats.AccountsProcessed,
			&run.Stats.NewRecords,
			&run.Stats.ArtifactsDownloaded,
			&run.Stats.Errors,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at for run %q: %w", run.ID, err)
		}
		if run.FinishedAt, err = time.Parse(time.RFC3339, finishedAt); err != nil {
			return nil, fmt.Errorf("parse finished_at for run %q: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}
