package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/evolvesync/internal/domain/port/driven"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "credentials.enc"))
}

func TestVault_UnlockMissingContainer(t *testing.T) {
	v := newTestVault(t)

	_, err := v.Unlock("master")
	assert.ErrorIs(t, err, driven.ErrVaultNotFound)
}

func TestVault_AddAndUnlock(t *testing.T) {
	v := newTestVault(t)

	added, err := v.Add("alice", "p1", "master")
	require.NoError(t, err)
	assert.True(t, added)

	creds, err := v.Unlock("master")
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "alice", creds[0].Username)
	assert.Equal(t, "p1", creds[0].Password)
}

func TestVault_AddDuplicateUsername(t *testing.T) {
	v := newTestVault(t)

	added, err := v.Add("alice", "p1", "master")
	require.NoError(t, err)
	require.True(t, added)

	added, err = v.Add("alice", "p2", "master")
	require.NoError(t, err)
	assert.False(t, added)

	creds, err := v.Unlock("master")
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "p1", creds[0].Password, "duplicate add must not overwrite")
}

func TestVault_Remove(t *testing.T) {
	v := newTestVault(t)

	_, err := v.Add("alice", "p1", "master")
	require.NoError(t, err)
	_, err = v.Add("bob", "p2", "master")
	require.NoError(t, err)

	removed, err := v.Remove("alice", "master")
	require.NoError(t, err)
	assert.True(t, removed)

	creds, err := v.Unlock("master")
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "bob", creds[0].Username)
}

func TestVault_RemoveNoMatchDoesNotWrite(t *testing.T) {
	v := newTestVault(t)

	_, err := v.Add("alice", "p1", "master")
	require.NoError(t, err)

	before, err := os.ReadFile(v.path)
	require.NoError(t, err)

	removed, err := v.Remove("nobody", "master")
	require.NoError(t, err)
	assert.False(t, removed)

	after, err := os.ReadFile(v.path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "no-match remove must leave the container byte-for-byte unchanged")
}

func TestVault_WrongMasterSecret(t *testing.T) {
	v := newTestVault(t)

	_, err := v.Add("alice", "p1", "master")
	require.NoError(t, err)

	before, err := os.ReadFile(v.path)
	require.NoError(t, err)

	_, err = v.Unlock("wrong")
	assert.ErrorIs(t, err, driven.ErrInvalidSecret)

	after, err := os.ReadFile(v.path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed unlock must leave the container byte-for-byte unchanged")
}

func TestVault_TruncatedContainer(t *testing.T) {
	v := newTestVault(t)

	_, err := v.Add("alice", "p1", "master")
	require.NoError(t, err)

	data, err := os.ReadFile(v.path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(v.path, data[:len(data)-4], 0o600))

	_, err = v.Unlock("master")
	assert.ErrorIs(t, err, driven.ErrInvalidSecret)
}

func TestVault_TamperedCiphertext(t *testing.T) {
	v := newTestVault(t)

	_, err := v.Add("alice", "p1", "master")
	require.NoError(t, err)

	data, err := os.ReadFile(v.path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(v.path, data, 0o600))

	_, err = v.Unlock("master")
	assert.ErrorIs(t, err, driven.ErrInvalidSecret)
}

func TestVault_FreshSaltPerMutation(t *testing.T) {
	v := newTestVault(t)

	_, err := v.Add("alice", "p1", "master")
	require.NoError(t, err)
	first, err := os.ReadFile(v.path)
	require.NoError(t, err)

	_, err = v.Add("bob", "p2", "master")
	require.NoError(t, err)
	second, err := os.ReadFile(v.path)
	require.NoError(t, err)

	assert.NotEqual(t, first[:saltSize], second[:saltSize], "every mutation must generate a fresh salt")
}

func TestVault_SingleObjectPlaintextNormalized(t *testing.T) {
	creds, err := decodeCredentials([]byte(`{"username":"alice","password":"p1"}`))
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "alice", creds[0].Username)
}

func TestVault_RemoveAllLeavesEmptyList(t *testing.T) {
	v := newTestVault(t)

	_, err := v.Add("alice", "p1", "master")
	require.NoError(t, err)

	removed, err := v.Remove("alice", "master")
	require.NoError(t, err)
	require.True(t, removed)

	creds, err := v.Unlock("master")
	require.NoError(t, err)
	assert.Empty(t, creds)
}
