// Package csvstore implements the RecordStore port as a flat CSV file:
// first row = canonical column headers, every cell text. Each save is a
// full rewrite through a temp-file-then-rename so the file on disk is
// always a complete, consistent snapshot.
package csvstore

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/ericfisherdev/evolvesync/internal/domain/model"
	"github.com/ericfisherdev/evolvesync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RecordStore = (*Store)(nil)

// Columns is the canonical ordered column set. Keycode, Subject and
// PDF Direct Link deliberately sit last so manually maintained tracking
// columns stay grouped in the middle of the sheet.
var Columns = []string{
	"Candidate ref.",
	"First name",
	"Last name",
	"Completed",
	"Test Name",
	"Result",
	"Percent",
	"Duration",
	"Centre Name",
	"Report URL",
	"Report Download",
	"Result Sent",
	"Result Sent By",
	"E-Certificate",
	"E-Certificate By",
	"Certificate",
	"Certificate By",
	"Comments",
	"Keycode",
	"Subject",
	"PDF Direct Link",
}

// columnAliases maps legacy header names to their canonical replacements.
// Applied on every load, before any hashing or merging, so files written
// under an older schema stay deduplicable against new ones.
var columnAliases = map[string]string{
	"Downloaded At":        "Report URL",
	"Report Downloaded At": "Report Download",
	"E-Certificate Sent":   "E-Certificate",
	"Certificate Issued":   "Certificate",
}

// dateCosmeticColumns are reformatted to DD/MM/YYYY on save when the stored
// value parses as a datetime. The pipeline never computes these values.
var dateCosmeticColumns = map[string]bool{
	"Result Sent":   true,
	"E-Certificate": true,
	"Certificate":   true,
}

// Store is the CSV-file implementation of the RecordStore port.
type Store struct {
	path string
}

// New creates a Store backed by the CSV file at path.
func New(path string) *Store {
	return &Store{path: path}
}

// Initialize creates an empty header-only file if none exists; no-op otherwise.
func (s *Store) Initialize(ctx context.Context) error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat record store: %w", err)
	}
	return s.Save(ctx, nil)
}

// Load reads all records. An absent file yields an empty slice. Cells are
// kept as text: dates, refs and percentages round-trip exactly.
func (s *Store) Load(_ context.Context) ([]model.Record, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // Rows written under older schemas may be shorter.

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse record store: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	for i, name := range header {
		if canonical, ok := columnAliases[name]; ok {
			header[i] = canonical
		}
	}

	records := make([]model.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		var rec model.Record
		for i, cell := range row {
			if i >= len(header) {
				break
			}
			setField(&rec, header[i], cell)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Save rewrites the store with exactly the given records, in canonical
// column order, via write-temp-then-atomic-rename.
func (s *Store) Save(_ context.Context, records []model.Record) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		row := make([]string, len(Columns))
		for i, col := range Columns {
			val := getField(rec, col)
			if dateCosmeticColumns[col] {
				val = formatDDMMYYYY(val)
			}
			row[i] = val
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush record store: %w", err)
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(buf.Bytes())); err != nil {
		return fmt.Errorf("replace record store: %w", err)
	}
	return nil
}

// setField assigns a cell to the record field named by the canonical column.
// Unknown columns are ignored so extra columns never break a load.
func setField(rec *model.Record, col, val string) {
	switch col {
	case "Candidate ref.":
		rec.CandidateRef = val
	case "First name":
		rec.FirstName = val
	case "Last name":
		rec.LastName = val
	case "Completed":
		rec.Completed = val
	case "Test Name":
		rec.TestName = val
	case "Result":
		rec.Result = val
	case "Percent":
		rec.Percent = val
	case "Duration":
		rec.Duration = val
	case "Centre Name":
		rec.CentreName = val
	case "Report URL":
		rec.ReportURL = val
	case "Report Download":
		rec.ReportDownload = val
	case "Result Sent":
		rec.ResultSent = val
	case "Result Sent By":
		rec.ResultSentBy = val
	case "E-Certificate":
		rec.ECertificate = val
	case "E-Certificate By":
		rec.ECertificateBy = val
	case "Certificate":
		rec.Certificate = val
	case "Certificate By":
		rec.CertificateBy = val
	case "Comments":
		rec.Comments = val
	case "Keycode":
		rec.Keycode = val
	case "Subject":
		rec.Subject = val
	case "PDF Direct Link":
		rec.PDFDirectLink = val
	}
}

// getField returns the record field named by the canonical column.
func getField(rec model.Record, col string) string {
	switch col {
	case "Candidate ref.":
		return rec.CandidateRef
	case "First name":
		return rec.FirstName
	case "Last name":
		return rec.LastName
	case "Completed":
		return rec.Completed
	case "Test Name":
		return rec.TestName
	case "Result":
		return rec.Result
	case "Percent":
		return rec.Percent
	case "Duration":
		return rec.Duration
	case "Centre Name":
		return rec.CentreName
	case "Report URL":
		return rec.ReportURL
	case "Report Download":
		return rec.ReportDownload
	case "Result Sent":
		return rec.ResultSent
	case "Result Sent By":
		return rec.ResultSentBy
	case "E-Certificate":
		return rec.ECertificate
	case "E-Certificate By":
		return rec.ECertificateBy
	case "Certificate":
		return rec.Certificate
	case "Certificate By":
		return rec.CertificateBy
	case "Comments":
		return rec.Comments
	case "Keycode":
		return rec.Keycode
	case "Subject":
		return rec.Subject
	case "PDF Direct Link":
		return rec.PDFDirectLink
	}
	return ""
}

// cosmeticDateLayouts are the datetime shapes the manual tracking columns
// have been seen to hold besides DD/MM/YYYY.
var cosmeticDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

// formatDDMMYYYY normalizes a manual tracking date to DD/MM/YYYY. Values
// already in that shape, and values that parse as nothing, pass through
// verbatim.
func formatDDMMYYYY(val string) string {
	v := strings.TrimSpace(val)
	if v == "" {
		return ""
	}
	if len(v) == 10 && v[2] == '/' && v[5] == '/' {
		return v
	}
	for _, layout := range cosmeticDateLayouts {
		if dt, err := time.Parse(layout, v); err == nil {
			return dt.Format(model.CompletedDateLayout)
		}
	}
	return val
}
