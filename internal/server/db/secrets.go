package db

import (
	"database/sql"
	"fmt"
)

// PutVaultSecret inserts or overwrites a sealed credential under (scope, key).
// The value is an opaque sealed blob; plaintext never reaches this layer.
func (s *Store) PutVaultSecret(scope, key string, sealed []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO vault_secrets (scope, key, value_sealed)
		 VALUES (?, ?, ?)
		 ON CONFLICT(scope, key) DO UPDATE SET
		   value_sealed = excluded.value_sealed,
		   updated_at = CURRENT_TIMESTAMP`,
		scope, key, sealed,
	)
	if err != nil {
		return fmt.Errorf("upsert vault secret: %w", err)
	}
	return nil
}

// GetVaultSecret retrieves a sealed credential. Returns (nil, nil) when absent.
func (s *Store) GetVaultSecret(scope, key string) ([]byte, error) {
	var sealed []byte
	err := s.db.QueryRow(
		`SELECT value_sealed FROM vault_secrets WHERE scope = ? AND key = ?`,
		scope, key,
	).Scan(&sealed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vault secret: %w", err)
	}
	return sealed, nil
}

// DeleteVaultSecret removes a credential. Returns true if a row was deleted.
// Only explicit administrative action reaches here; the gateway never deletes.
func (s *Store) DeleteVaultSecret(scope, key string) (bool, error) {
	res, err := s.db.Exec(
		`DELETE FROM vault_secrets WHERE scope = ? AND key = ?`, scope, key,
	)
	if err != nil {
		return false, fmt.Errorf("delete vault secret: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
