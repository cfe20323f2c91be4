// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	VaultPath       string
	StorePath       string
	ReportsDir      string
	JournalPath     string
	BaseURL         string
	ArtifactBaseURL string
	RemoteTimeout   time.Duration
}

// Load reads configuration from environment variables and returns a validated
// Config. All variables are optional with defaults: EVOLVESYNC_VAULT_PATH
// (credentials.enc), EVOLVESYNC_STORE_PATH (exam_results.csv),
// EVOLVESYNC_REPORTS_DIR (reports), EVOLVESYNC_JOURNAL_PATH (evolvesync.db),
// EVOLVESYNC_BASE_URL, EVOLVESYNC_ARTIFACT_BASE_URL and
// EVOLVESYNC_REMOTE_TIMEOUT (30s).
func Load() (*Config, error) {
	cfg := &Config{
		VaultPath:       "credentials.enc",
		StorePath:       "exam_results.csv",
		ReportsDir:      "reports",
		JournalPath:     "evolvesync.db",
		BaseURL:         "https://evolve.cityandguilds.com",
		ArtifactBaseURL: "https://evolve.cityandguilds.com/secureassess/CustomerData/Evolve/DocumentStore/",
		RemoteTimeout:   30 * time.Second,
	}

	if v, ok := os.LookupEnv("EVOLVESYNC_VAULT_PATH"); ok {
		cfg.VaultPath = v
	}
	if v, ok := os.LookupEnv("EVOLVESYNC_STORE_PATH"); ok {
		cfg.StorePath = v
	}
	if v, ok := os.LookupEnv("EVOLVESYNC_REPORTS_DIR"); ok {
		cfg.ReportsDir = v
	}
	if v, ok := os.LookupEnv("EVOLVESYNC_JOURNAL_PATH"); ok {
		cfg.JournalPath = v
	}
	if v, ok := os.LookupEnv("EVOLVESYNC_BASE_URL"); ok {
		cfg.BaseURL = v
	}
	if v, ok := os.LookupEnv("EVOLVESYNC_ARTIFACT_BASE_URL"); ok {
		cfg.ArtifactBaseURL = v
	}
	if v, ok := os.LookupEnv("EVOLVESYNC_REMOTE_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("EVOLVESYNC_REMOTE_TIMEOUT has invalid duration %q: %w", v, err)
		}
		cfg.RemoteTimeout = parsed
	}

	return cfg, nil
}
