// Package vault implements the CredentialVault port as a single encrypted
// container file: salt(16 bytes) || AES-256-GCM(nonce || ciphertext).
// The key is derived from the master secret with PBKDF2-HMAC-SHA256 and
// the container's stored salt; every mutation re-encrypts the full list
// under a fresh salt and replaces the file atomically.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/natefinch/atomic"
	"golang.org/x/crypto/pbkdf2"

	"github.com/ericfisherdev/evolvesync/internal/domain/model"
	"github.com/ericfisherdev/evolvesync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialVault = (*Vault)(nil)

const (
	saltSize      = 16
	keySize       = 32
	kdfIterations = 100_000
)

// Vault is the file-backed implementation of the CredentialVault port.
type Vault struct {
	path string
}

// New creates a Vault backed by the container file at path. The file is
// not created until the first Add.
func New(path string) *Vault {
	return &Vault{path: path}
}

// Unlock reads and decrypts the container. Returns driven.ErrVaultNotFound
// when no container exists and driven.ErrInvalidSecret when authentication
// fails (wrong secret or corrupted file).
func (v *Vault) Unlock(master string) ([]model.Credential, error) {
	data, err := os.ReadFile(v.path)
	if os.IsNotExist(err) {
		return nil, driven.ErrVaultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read vault container: %w", err)
	}

	if len(data) < saltSize {
		return nil, driven.ErrInvalidSecret
	}
	salt, ciphertext := data[:saltSize], data[saltSize:]

	gcm, err := newGCM(master, salt)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, driven.ErrInvalidSecret
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		// Wrong secret and tampered container are indistinguishable here;
		// both must fail, never silently return garbage.
		return nil, driven.ErrInvalidSecret
	}

	return decodeCredentials(plaintext)
}

// List is a read-only unlock.
func (v *Vault) List(master string) ([]model.Credential, error) {
	return v.Unlock(master)
}

// Add appends a credential and rewrites the container. A missing container
// starts from an empty list. Returns false without writing when the
// username is already present.
func (v *Vault) Add(username, password, master string) (bool, error) {
	creds, err := v.Unlock(master)
	if err != nil && !errors.Is(err, driven.ErrVaultNotFound) {
		return false, err
	}

	for _, c := range creds {
		if c.Username == username {
			return false, nil
		}
	}

	creds = append(creds, model.Credential{Username: username, Password: password})
	if err := v.save(creds, master); err != nil {
		return false, err
	}
	return true, nil
}

// Remove filters out the credential with the given username and rewrites
// the container. Returns false without writing when nothing matched.
func (v *Vault) Remove(username, master string) (bool, error) {
	creds, err := v.Unlock(master)
	if err != nil {
		return false, err
	}

	filtered := creds[:0:0]
	for _, c := range creds {
		if c.Username != username {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == len(creds) {
		return false, nil
	}

	if err := v.save(filtered, master); err != nil {
		return false, err
	}
	return true, nil
}

// save builds the full container in memory, then replaces the file
// atomically. A failure at any point leaves the old container untouched.
func (v *Vault) save(creds []model.Credential, master string) error {
	if creds == nil {
		creds = []model.Credential{}
	}
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("rand salt: %w", err)
	}

	gcm, err := newGCM(master, salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	sealed := gcm.Seal(nonce, nonce, plaintext, nil)

	container := make([]byte, 0, saltSize+len(sealed))
	container = append(container, salt...)
	container = append(container, sealed...)

	if err := atomic.WriteFile(v.path, bytes.NewReader(container)); err != nil {
		return fmt.Errorf("write vault container: %w", err)
	}
	return nil
}

// newGCM derives the AES-256 key from master and salt and returns the AEAD.
func newGCM(master string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(master), salt, kdfIterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}

// decodeCredentials parses the decrypted plaintext. A lone JSON object is
// normalized to a single-element list so hand-migrated containers keep
// working.
func decodeCredentials(plaintext []byte) ([]model.Credential, error) {
	var creds []model.Credential
	if err := json.Unmarshal(plaintext, &creds); err == nil {
		return creds, nil
	}

	var single model.Credential
	if err := json.Unmarshal(plaintext, &single); err != nil {
		return nil, fmt.Errorf("decode vault plaintext: %w", err)
	}
	return []model.Credential{single}, nil
}
