package driven

import (
	"errors"

	"github.com/ericfisherdev/evolvesync/internal/domain/model"
)

// ErrVaultNotFound is returned when no vault container exists yet. The
// caller must onboard (add a credential) before any unlock can succeed.
var ErrVaultNotFound = errors.New("vault container not found")

// ErrInvalidSecret is returned when decryption fails: wrong master secret
// or a corrupted container. The authenticated cipher catches both; the
// stored container is never modified by a failed unlock.
var ErrInvalidSecret = errors.New("invalid master secret")

// CredentialVault defines the driven port for the encrypted account list.
// Every mutation re-encrypts the full list under a freshly generated salt
// and replaces the container atomically.
type CredentialVault interface {
	// Unlock decrypts and returns the credential list.
	Unlock(master string) ([]model.Credential, error)

	// Add appends a credential, creating the container if absent. Returns
	// false without writing when the username is already present.
	Add(username, password, master string) (bool, error)

	// Remove deletes the credential with the given username. Returns false
	// without writing when no entry matches.
	Remove(username, master string) (bool, error)

	// List is a read-only unlock.
	List(master string) ([]model.Credential, error)
}
