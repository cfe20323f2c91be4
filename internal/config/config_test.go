package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "credentials.enc", cfg.VaultPath)
	assert.Equal(t, "exam_results.csv", cfg.StorePath)
	assert.Equal(t, "reports", cfg.ReportsDir)
	assert.Equal(t, "evolvesync.db", cfg.JournalPath)
	assert.Equal(t, 30*time.Second, cfg.RemoteTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("EVOLVESYNC_VAULT_PATH", "/data/vault.enc")
	t.Setenv("EVOLVESYNC_STORE_PATH", "/data/results.csv")
	t.Setenv("EVOLVESYNC_REMOTE_TIMEOUT", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/vault.enc", cfg.VaultPath)
	assert.Equal(t, "/data/results.csv", cfg.StorePath)
	assert.Equal(t, 90*time.Second, cfg.RemoteTimeout)
}

func TestLoad_InvalidTimeout(t *testing.T) {
	t.Setenv("EVOLVESYNC_REMOTE_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}
