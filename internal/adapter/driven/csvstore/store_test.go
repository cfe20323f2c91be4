package csvstore

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/evolvesync/internal/domain/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "exam_results.csv"))
}

func sampleRecord() model.Record {
	return model.Record{
		CandidateRef: "A1",
		FirstName:    "Jo",
		LastName:     "Doe",
		Completed:    "15/03/2024",
		TestName:     "Functional Skills English",
		Result:       "Pass",
		Percent:      "87%",
		Duration:     "01:12:33",
		CentreName:   "Example Centre",
		ReportURL:    "2024-03-16 09:00:00",
		Keycode:      "KC123",
		Subject:      "English",
	}
}

func TestStore_LoadAbsentFile(t *testing.T) {
	s := newTestStore(t)

	records, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_InitializeCreatesHeaderOnlyFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx))

	data, err := os.ReadFile(s.path)
	require.NoError(t, err)

	r := csv.NewReader(strings.NewReader(string(data)))
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Columns, rows[0])
}

func TestStore_InitializeNoOpWhenPresent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, []model.Record{sampleRecord()}))
	require.NoError(t, s.Initialize(ctx))

	records, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1, "initialize must not clobber an existing store")
}

func TestStore_RoundTripPreservesIdentities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec1 := sampleRecord()
	rec2 := sampleRecord()
	rec2.CandidateRef = "B2"
	rec2.Percent = "42%"

	require.NoError(t, s.Save(ctx, []model.Record{rec1, rec2}))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, rec1.Identity(), loaded[0].Identity())
	assert.Equal(t, rec2.Identity(), loaded[1].Identity())
	assert.Equal(t, "87%", loaded[0].Percent, "cells must round-trip as exact text")
	assert.Equal(t, "15/03/2024", loaded[0].Completed)
}

func TestStore_LegacyColumnAliases(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// A file written under the legacy schema, before the rename.
	legacy := strings.Join([]string{
		`Candidate ref.,First name,Last name,Completed,Test Name,Result,Downloaded At,Report Downloaded At,E-Certificate Sent,Certificate Issued,PDF Direct Link`,
		`A1,Jo,Doe,15/03/2024,Functional Skills English,Pass,2024-03-16 09:00:00,,,,https://example.test/doc.pdf`,
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(s.path, []byte(legacy), 0o644))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	current := sampleRecord()
	assert.Equal(t, current.Identity(), loaded[0].Identity(),
		"legacy headers must produce identical identity hashes")
	assert.Equal(t, "2024-03-16 09:00:00", loaded[0].ReportURL)
	assert.Equal(t, "https://example.test/doc.pdf", loaded[0].PDFDirectLink)
	assert.Equal(t, model.StateLinked, loaded[0].State())
}

func TestStore_ShortLegacyRowsTolerated(t *testing.T) {
	s := newTestStore(t)

	data := "Candidate ref.,First name,Last name\nA1,Jo,Doe\n"
	require.NoError(t, os.WriteFile(s.path, []byte(data), 0o644))

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "A1", loaded[0].CandidateRef)
	assert.Equal(t, model.StateUnresolved, loaded[0].State())
}

func TestStore_SaveIsFullRewrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, []model.Record{sampleRecord()}))
	require.NoError(t, s.Save(ctx, nil))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestFormatDDMMYYYY(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"already formatted", "15/03/2024", "15/03/2024"},
		{"datetime", "2024-03-15 10:30:00", "15/03/2024"},
		{"date only", "2024-03-15", "15/03/2024"},
		{"free text passes through", "sent by post", "sent by post"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDDMMYYYY(tt.in))
		})
	}
}

func TestStore_DateCosmeticsAppliedOnSave(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord()
	rec.ResultSent = "2024-03-20 14:00:00"
	rec.Comments = "2024-03-20 14:00:00" // Not a date column; must stay verbatim.

	require.NoError(t, s.Save(ctx, []model.Record{rec}))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "20/03/2024", loaded[0].ResultSent)
	assert.Equal(t, "2024-03-20 14:00:00", loaded[0].Comments)
}
