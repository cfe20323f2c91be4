// Package application contains use-case orchestration services.
package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"

	"github.com/ericfisherdev/evolvesync/internal/domain/model"
	"github.com/ericfisherdev/evolvesync/internal/domain/port/driven"
)

// pdfLocatorPattern matches the UUID-shaped PDF filename embedded in a
// report view: 36 hex-with-dashes characters immediately before ".pdf".
var pdfLocatorPattern = regexp.MustCompile(`([a-f0-9\-]{36}\.pdf)`)

// SyncService drives one full synchronization run: unlock the vault,
// iterate accounts, merge freshly listed rows into the record store without
// duplicates, then advance every non-terminal record's report download,
// persisting after each state change. Per-account and per-record failures
// are isolated, counted and logged; only vault failures surface to the
// caller.
type SyncService struct {
	vault        driven.CredentialVault
	store        driven.RecordStore
	opener       driven.SourceOpener
	journal      driven.RunJournal // Optional; nil disables run history.
	artifactBase string
	reportsDir   string
	now          func() time.Time
}

// NewSyncService creates a SyncService. artifactBase is the document store
// URL prefix that report locators are resolved against; reportsDir is the
// root under which PDFs are filed by completion date.
func NewSyncService(
	vault driven.CredentialVault,
	store driven.RecordStore,
	opener driven.SourceOpener,
	journal driven.RunJournal,
	artifactBase string,
	reportsDir string,
) *SyncService {
	return &SyncService{
		vault:        vault,
		store:        store,
		opener:       opener,
		journal:      journal,
		artifactBase: strings.TrimSuffix(artifactBase, "/") + "/",
		reportsDir:   reportsDir,
		now:          time.Now,
	}
}

// Run executes one synchronization cycle over all vault accounts, strictly
// sequentially. It returns the run counters even when every account failed.
// Cancellation is observed between records, never mid-record.
func (s *SyncService) Run(ctx context.Context, master string) (model.RunStats, error) {
	started := s.now()
	var stats model.RunStats

	accounts, err := s.vault.Unlock(master)
	if err != nil {
		return stats, err
	}

	if err := s.store.Initialize(ctx); err != nil {
		return stats, fmt.Errorf("initialize record store: %w", err)
	}

	for i, account := range accounts {
		if ctx.Err() != nil {
			break
		}
		if account.Blank() {
			slog.Warn("credentials missing, skipping account", "index", i+1)
			continue
		}
		s.syncAccount(ctx, account, &stats)
	}

	finished := s.now()
	if s.journal != nil {
		run := model.RunRecord{
			ID:         uuid.NewString(),
			StartedAt:  started,
			FinishedAt: finished,
			Stats:      stats,
		}
		if err := s.journal.Append(ctx, run); err != nil {
			slog.Error("journal append failed", "run", run.ID, "error", err)
		}
	}

	slog.Info("run complete",
		"accounts", stats.AccountsProcessed,
		"new_records", stats.NewRecords,
		"downloaded", stats.ArtifactsDownloaded,
		"errors", stats.Errors,
		"duration", finished.Sub(started).Round(time.Millisecond),
	)

	if ctx.Err() != nil {
		return stats, ctx.Err()
	}
	return stats, nil
}

// syncAccount runs the listing-then-enrichment cycle for one account. All
// failures are absorbed into the stats so subsequent accounts still run.
func (s *SyncService) syncAccount(ctx context.Context, account model.Credential, stats *model.RunStats) {
	log := slog.With("account", account.Username)
	log.Info("account starting")

	src, fetcher, err := s.opener.OpenSource(ctx)
	if err != nil {
		log.Error("open session failed", "error", err)
		stats.Errors++
		return
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Error("close session failed", "error", err)
		}
	}()

	if err := src.Login(ctx, account.Username, account.Password); err != nil {
		if errors.Is(err, driven.ErrAuthFailed) {
			log.Error("login rejected")
		} else {
			log.Error("login failed", "error", err)
		}
		stats.Errors++
		return
	}

	records, added, err := s.mergeListing(ctx, src)
	if err != nil {
		log.Error("listing merge failed", "error", err)
		stats.Errors++
		return
	}
	stats.NewRecords += added
	log.Info("listing merged", "total", len(records), "added", added)

	s.enrichPending(ctx, log, src, fetcher, records, stats)

	sortByCompleted(records)
	if err := s.store.Save(ctx, records); err != nil {
		log.Error("final save failed", "error", err)
		stats.Errors++
		return
	}

	stats.AccountsProcessed++
	log.Info("account complete")
}

// mergeListing pulls the portal listing and appends rows whose identity is
// not yet in the store. The store is reloaded first so duplicate detection
// reflects the latest on-disk truth, including rows added for earlier
// accounts in this same run.
func (s *SyncService) mergeListing(ctx context.Context, src driven.ResultSource) ([]model.Record, int, error) {
	rows, err := src.ListResults(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}

	records, err := s.store.Load(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("load record store: %w", err)
	}

	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		seen[rec.Identity()] = true
	}

	added := 0
	for _, row := range rows {
		id := row.Identity()
		if seen[id] {
			continue
		}
		seen[id] = true
		records = append(records, row)
		added++
	}

	if added > 0 {
		if err := s.store.Save(ctx, records); err != nil {
			return nil, 0, fmt.Errorf("save merged records: %w", err)
		}
	}
	return records, added, nil
}

// enrichPending advances every non-terminal record one step, persisting
// after each transition. A single record's failure never strands the batch:
// the listing context is re-established and the loop continues. Only a
// failed re-establishment aborts the remaining records of this account.
func (s *SyncService) enrichPending(
	ctx context.Context,
	log *slog.Logger,
	src driven.ResultSource,
	fetcher driven.ArtifactFetcher,
	records []model.Record,
	stats *model.RunStats,
) {
	for i := range records {
		if ctx.Err() != nil {
			return
		}
		if records[i].State().Terminal() {
			continue
		}

		downloaded, err := s.advanceRecord(ctx, src, fetcher, records, i)
		if downloaded {
			stats.ArtifactsDownloaded++
		}
		if err != nil {
			stats.Errors++
			log.Error("enrichment step failed",
				"identity", records[i].Identity(),
				"state", string(records[i].State()),
				"error", err,
			)
		}

		if rerr := src.ReturnToListing(ctx); rerr != nil {
			log.Error("failed to re-establish listing, aborting remaining records", "error", rerr)
			stats.Errors++
			return
		}
	}
}

// advanceRecord performs one enrichment step for records[i], persisting the
// store immediately after every state change so a crash loses at most the
// in-flight record. Transitions are monotonic: a populated link is never
// cleared, and NOT FOUND is only written for a genuinely absent locator,
// never for a transport failure.
func (s *SyncService) advanceRecord(
	ctx context.Context,
	src driven.ResultSource,
	fetcher driven.ArtifactFetcher,
	records []model.Record,
	i int,
) (downloaded bool, err error) {
	rec := &records[i]

	if rec.State() == model.StateUnresolved {
		if err := src.FocusRow(ctx, *rec); err != nil {
			if errors.Is(err, driven.ErrRowNotFound) {
				slog.Warn("row no longer listed, leaving unresolved", "identity", rec.Identity())
				return false, nil
			}
			return false, fmt.Errorf("focus row: %w", err)
		}
		if err := src.OpenReportView(ctx); err != nil {
			if errors.Is(err, driven.ErrRowNotFound) {
				slog.Warn("report view gone, leaving unresolved", "identity", rec.Identity())
				return false, nil
			}
			return false, fmt.Errorf("open report view: %w", err)
		}
		html, err := src.CurrentViewHTML(ctx)
		if err != nil {
			return false, fmt.Errorf("read report view: %w", err)
		}

		locator := pdfLocatorPattern.FindString(html)
		if locator == "" {
			rec.PDFDirectLink = model.NotFoundMarker
			if err := s.store.Save(ctx, records); err != nil {
				return false, fmt.Errorf("persist not-found: %w", err)
			}
			slog.Info("no report reference in view", "identity", rec.Identity())
			return false, nil
		}

		rec.PDFDirectLink = s.artifactBase + locator
		if err := s.store.Save(ctx, records); err != nil {
			return false, fmt.Errorf("persist link: %w", err)
		}
		slog.Info("report link found", "identity", rec.Identity(), "url", rec.PDFDirectLink)
	}

	// LINKED: fetch through the authenticated session.
	status, body, err := fetcher.Fetch(ctx, rec.PDFDirectLink)
	if err != nil {
		return false, fmt.Errorf("fetch report: %w", err)
	}
	if status != http.StatusOK {
		slog.Warn("report download failed, will retry next run",
			"identity", rec.Identity(), "status", status)
		return false, nil
	}

	dir, err := rec.ReportDir(s.reportsDir)
	if err != nil {
		return false, fmt.Errorf("derive report folder: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create report folder: %w", err)
	}
	path := filepath.Join(dir, rec.ReportFilename())
	if err := atomic.WriteFile(path, bytes.NewReader(body)); err != nil {
		return false, fmt.Errorf("write report file: %w", err)
	}

	rec.ReportDownload = s.now().Format("2006-01-02 15:04:05")
	if err := s.store.Save(ctx, records); err != nil {
		return true, fmt.Errorf("persist download: %w", err)
	}
	slog.Info("report downloaded", "identity", rec.Identity(), "path", path)
	return true, nil
}

// sortByCompleted orders records by completion date ascending. Records
// whose date does not parse sort after all parseable ones, keeping their
// relative order.
func sortByCompleted(records []model.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, oki := records[i].CompletedTime()
		tj, okj := records[j].CompletedTime()
		switch {
		case oki && okj:
			return ti.Before(tj)
		case oki:
			return true
		default:
			return false
		}
	})
}
