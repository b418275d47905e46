// Package vault stores credential strings in two fixed, disjoint scopes,
// keyed by api_name: one scope holds api_key secrets, the other bearer
// tokens. Registrations with auth type none never touch the vault. Values
// are sealed at rest and never logged or echoed in plaintext.
package vault

import (
	"errors"
	"fmt"

	"github.com/portico-labs/portico/internal/registry"
	"github.com/portico-labs/portico/internal/server/db"
)

var (
	// ErrPermission is returned when a write is attempted without elevated
	// access. Reads need only service-level access.
	ErrPermission = errors.New("vault: write access denied")

	// ErrSecretNotFound is returned when no credential exists for the
	// requested scope and api name.
	ErrSecretNotFound = errors.New("vault: secret not found")

	// ErrNoScope is returned when the auth type implies no secret scope.
	ErrNoScope = errors.New("vault: auth type has no secret scope")
)

// Access is the caller's privilege level on the vault.
type Access int

const (
	// ReadOnly permits Get only. This is the gateway's access level.
	ReadOnly Access = iota
	// ReadWrite additionally permits Put and Delete (operator/registration paths).
	ReadWrite
)

// Vault mediates access to the two credential scopes.
type Vault struct {
	store  *db.Store
	key    [32]byte
	access Access
}

// New opens the vault over the given store with the given access level.
// masterKey seals values at rest.
func New(store *db.Store, masterKey [32]byte, access Access) *Vault {
	return &Vault{store: store, key: masterKey, access: access}
}

// Put writes value under the scope implied by authType, keyed by apiName.
// Overwrites any existing value (this is the rotation primitive).
func (v *Vault) Put(authType registry.AuthType, apiName, value string) error {
	scope := authType.Scope()
	if scope == "" {
		return ErrNoScope
	}
	if v.access != ReadWrite {
		return ErrPermission
	}
	sealed, err := seal(v.key, []byte(value))
	if err != nil {
		return fmt.Errorf("seal credential for %q: %w", apiName, err)
	}
	return v.store.PutVaultSecret(scope, apiName, sealed)
}

// Get returns the credential for (authType, apiName).
func (v *Vault) Get(authType registry.AuthType, apiName string) (string, error) {
	scope := authType.Scope()
	if scope == "" {
		return "", ErrNoScope
	}
	sealed, err := v.store.GetVaultSecret(scope, apiName)
	if err != nil {
		return "", err
	}
	if sealed == nil {
		return "", fmt.Errorf("%w: scope %s, api %q", ErrSecretNotFound, scope, apiName)
	}
	plain, err := unseal(v.key, sealed)
	if err != nil {
		return "", fmt.Errorf("unseal credential for %q: %w", apiName, err)
	}
	return string(plain), nil
}

// Delete removes the credential for (authType, apiName). Administrative only;
// the gateway never deletes. Returns true if a value existed.
func (v *Vault) Delete(authType registry.AuthType, apiName string) (bool, error) {
	scope := authType.Scope()
	if scope == "" {
		return false, ErrNoScope
	}
	if v.access != ReadWrite {
		return false, ErrPermission
	}
	return v.store.DeleteVaultSecret(scope, apiName)
}
