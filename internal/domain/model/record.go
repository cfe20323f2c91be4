package model

import (
	"path/filepath"
	"strings"
	"time"
)

// CompletedDateLayout is the DD/MM/YYYY layout used by the portal for the
// Completed column.
const CompletedDateLayout = "02/01/2006"

// Record represents a single exam result tracked in the record store.
// All fields are stored as text; dates and percentages round-trip exactly
// as the portal presented them.
type Record struct {
	CandidateRef string
	FirstName    string
	LastName     string
	Completed    string // DD/MM/YYYY
	TestName     string
	Result       string
	Percent      string
	Duration     string
	CentreName   string

	// ReportURL records when the row was first scraped.
	ReportURL string
	// ReportDownload records when the report PDF was downloaded; empty until then.
	ReportDownload string

	// Manual tracking columns maintained outside the pipeline. The store
	// formats them on save but the pipeline never computes them.
	ResultSent     string
	ResultSentBy   string
	ECertificate   string
	ECertificateBy string
	Certificate    string
	CertificateBy  string
	Comments       string

	Keycode string
	Subject string

	// PDFDirectLink is the absolute report URL once located, or
	// NotFoundMarker when the report view carries no PDF reference.
	PDFDirectLink string
}

// NotFoundMarker is the terminal PDFDirectLink value for records whose
// report view contains no PDF reference.
const NotFoundMarker = "NOT FOUND"

// Identity returns the deduplication key for the record: the six stable
// fields joined with "|", trimmed and lowercased. It is recomputed on
// demand and never persisted, so renaming other columns can never
// invalidate existing identities.
func (r Record) Identity() string {
	fields := []string{
		r.CandidateRef,
		r.FirstName,
		r.LastName,
		r.Completed,
		r.TestName,
		r.Result,
	}
	for i, f := range fields {
		fields[i] = strings.ToLower(strings.TrimSpace(f))
	}
	return strings.Join(fields, "|")
}

// EnrichmentState describes how far a record's report download has progressed.
type EnrichmentState string

const (
	// StateUnresolved means no report link has been looked up yet.
	StateUnresolved EnrichmentState = "unresolved"
	// StateNotFound means the report view carried no PDF reference. Terminal.
	StateNotFound EnrichmentState = "not_found"
	// StateLinked means a report URL is known but the PDF is not yet downloaded.
	StateLinked EnrichmentState = "linked"
	// StateDownloaded means the PDF has been fetched and stored. Terminal.
	StateDownloaded EnrichmentState = "downloaded"
)

// Terminal reports whether the state needs no further enrichment work.
func (s EnrichmentState) Terminal() bool {
	return s == StateNotFound || s == StateDownloaded
}

// State derives the enrichment state from the two persisted fields. The
// state is never stored as its own column so older files remain readable.
func (r Record) State() EnrichmentState {
	switch {
	case strings.TrimSpace(r.PDFDirectLink) == "":
		return StateUnresolved
	case r.PDFDirectLink == NotFoundMarker:
		return StateNotFound
	case strings.TrimSpace(r.ReportDownload) == "":
		return StateLinked
	default:
		return StateDownloaded
	}
}

// reservedFilenameChars are stripped from report filenames so the result is
// valid on every filesystem the store may live on.
const reservedFilenameChars = `\/:*?"<>|`

// ReportFilename returns the sanitized PDF filename for the record:
// "First Last Test Result.pdf" with filesystem-reserved characters removed.
func (r Record) ReportFilename() string {
	parts := []string{
		strings.TrimSpace(r.FirstName),
		strings.TrimSpace(r.LastName),
		strings.TrimSpace(r.TestName),
		strings.TrimSpace(r.Result),
	}
	name := strings.Join(parts, " ") + ".pdf"
	var b strings.Builder
	b.Grow(len(name))
	for _, c := range name {
		if !strings.ContainsRune(reservedFilenameChars, c) {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// ReportDir returns the directory for the record's PDF under base,
// partitioned by completion date as "YYYY/MM DD".
func (r Record) ReportDir(base string) (string, error) {
	dt, err := time.Parse(CompletedDateLayout, strings.TrimSpace(r.Completed))
	if err != nil {
		return "", err
	}
	return filepath.Join(base, dt.Format("2006"), dt.Format("01 02")), nil
}

// CompletedTime parses the Completed column. The boolean is false when the
// value does not parse as DD/MM/YYYY.
func (r Record) CompletedTime() (time.Time, bool) {
	dt, err := time.Parse(CompletedDateLayout, strings.TrimSpace(r.Completed))
	if err != nil {
		return time.Time{}, false
	}
	return dt, true
}
