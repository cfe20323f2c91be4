package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/evolvesync/internal/domain/model"
)

// ErrAuthFailed is returned by Login when the portal rejects the account's
// credentials. It isolates to the current account; the orchestrator skips
// to the next one.
var ErrAuthFailed = errors.New("portal login rejected")

// ErrRowNotFound is returned by FocusRow when the portal listing no longer
// contains a row matching the record's identity fields.
var ErrRowNotFound = errors.New("result row not found in portal listing")

// ErrTimeout is returned when a bounded readiness wait on the portal expires.
var ErrTimeout = errors.New("portal interaction timed out")

// ResultSource defines the driven port for the stateful portal interaction
// sequence: authenticate, list, focus one row, open its report view, and
// return to the listing. One ResultSource holds one authenticated session;
// a fresh one is opened per account. Any call may return ErrTimeout.
type ResultSource interface {
	// Login establishes the session. Returns ErrAuthFailed on rejection.
	Login(ctx context.Context, username, password string) error

	// ListResults returns every result row currently visible in the portal
	// listing, as raw records. The caller is responsible for deduplication.
	ListResults(ctx context.Context) ([]model.Record, error)

	// FocusRow selects the listing row matching the record's six identity
	// fields. Returns ErrRowNotFound when the listing no longer shows it.
	FocusRow(ctx context.Context, rec model.Record) error

	// OpenReportView opens the report view for the focused row.
	OpenReportView(ctx context.Context) error

	// CurrentViewHTML returns the HTML of the currently open report view.
	CurrentViewHTML(ctx context.Context) (string, error)

	// ReturnToListing navigates back to the results listing so the next
	// record can be processed, regardless of the previous record's outcome.
	ReturnToListing(ctx context.Context) error

	// Close tears down the session.
	Close() error
}

// SourceOpener opens a fresh authenticated-capable session pair for one
// account. The fetcher shares the source's session cookies, since report
// downloads require the same login context.
type SourceOpener interface {
	OpenSource(ctx context.Context) (ResultSource, ArtifactFetcher, error)
}
