package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/portico-labs/portico/internal/registry"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Sentinel errors for registry operations.
var (
	// ErrDuplicateName is returned when a registration collides with an
	// existing api_name (case-insensitive). The existing row is untouched.
	ErrDuplicateName = errors.New("api name already registered")

	// ErrAPINotFound is returned by operations addressing a missing row.
	ErrAPINotFound = errors.New("api not found")

	// ErrStatusTransition is returned when a status update is not one of
	// pending→validated or pending→failed. Validated and failed are terminal.
	ErrStatusTransition = errors.New("status transition not permitted")
)

// nameKey is the case-insensitive uniqueness key for api_name.
func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CreateAPI inserts a new registration. The UNIQUE constraint on name_key is
// the atomic check-then-insert: under concurrent registrations of the same
// name exactly one insert wins and the rest observe ErrDuplicateName.
func (s *Store) CreateAPI(api *registry.API) error {
	endpoints, err := json.Marshal(orEmptyEndpoints(api.AvailableEndpoints))
	if err != nil {
		return fmt.Errorf("marshal endpoints: %w", err)
	}
	examples, err := json.Marshal(orEmptyExamples(api.ExampleCalls))
	if err != nil {
		return fmt.Errorf("marshal example calls: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO apis (api_id, api_name, name_key, description, documentation_url,
		   host, base_path, auth_type, api_key_param, secret_scope,
		   available_endpoints, example_calls, status, validation_message, requested_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		api.ID, api.Name, nameKey(api.Name), api.Description, api.DocumentationURL,
		api.Host, api.BasePath, string(api.AuthType), api.APIKeyParam, api.SecretScope,
		string(endpoints), string(examples), string(api.Status), api.ValidationMessage, api.RequestedBy,
	)
	if err != nil {
		var sqliteErr *sqlite.Error
		if errors.As(err, &sqliteErr) {
			switch sqliteErr.Code() {
			case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
				return ErrDuplicateName
			}
		}
		return fmt.Errorf("insert api: %w", err)
	}
	return nil
}

const apiColumns = `api_id, api_name, description, documentation_url, host, base_path,
	auth_type, api_key_param, secret_scope, available_endpoints, example_calls,
	status, validation_message, requested_by, created_at, modified_at`

// GetAPIByName retrieves a registration by case-insensitive exact name match.
// Returns (nil, nil) when no row exists.
func (s *Store) GetAPIByName(name string) (*registry.API, error) {
	row := s.db.QueryRow(
		`SELECT `+apiColumns+` FROM apis WHERE name_key = ?`, nameKey(name),
	)
	return scanAPI(row)
}

// GetAPIByID retrieves a registration by its assigned identifier.
// Returns (nil, nil) when no row exists.
func (s *Store) GetAPIByID(id string) (*registry.API, error) {
	row := s.db.QueryRow(
		`SELECT `+apiColumns+` FROM apis WHERE api_id = ?`, id,
	)
	return scanAPI(row)
}

// ListAPIs returns registrations in creation order. A non-empty status
// filters the result. The gateway never consults this listing; it exists for
// human-facing enumeration only.
func (s *Store) ListAPIs(status registry.Status) ([]registry.API, error) {
	query := `SELECT ` + apiColumns + ` FROM apis`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at, api_id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list apis: %w", err)
	}
	defer rows.Close()

	var apis []registry.API
	for rows.Next() {
		api, err := scanAPI(rows)
		if err != nil {
			return nil, err
		}
		apis = append(apis, *api)
	}
	return apis, rows.Err()
}

// UpdateAPIStatus transitions a pending registration to validated or failed.
// The WHERE clause enforces that only pending rows move, so the terminal
// states can never be rewritten, even under concurrent updates.
func (s *Store) UpdateAPIStatus(id string, status registry.Status, message string) error {
	if status != registry.StatusValidated && status != registry.StatusFailed {
		return ErrStatusTransition
	}
	res, err := s.db.Exec(
		`UPDATE apis SET status = ?, validation_message = ?, modified_at = CURRENT_TIMESTAMP
		 WHERE api_id = ? AND status = ?`,
		string(status), message, id, string(registry.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("update api status: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	// Distinguish a missing row from a terminal one.
	existing, err := s.GetAPIByID(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrAPINotFound
	}
	return ErrStatusTransition
}

// DeleteAPI removes a registration by name. Returns true if a row was deleted.
func (s *Store) DeleteAPI(name string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM apis WHERE name_key = ?`, nameKey(name))
	if err != nil {
		return false, fmt.Errorf("delete api: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAPI(row rowScanner) (*registry.API, error) {
	api := &registry.API{}
	var authType, status, endpoints, examples string
	err := row.Scan(
		&api.ID, &api.Name, &api.Description, &api.DocumentationURL, &api.Host, &api.BasePath,
		&authType, &api.APIKeyParam, &api.SecretScope, &endpoints, &examples,
		&status, &api.ValidationMessage, &api.RequestedBy, &api.CreatedAt, &api.ModifiedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan api: %w", err)
	}
	api.AuthType = registry.AuthType(authType)
	api.Status = registry.Status(status)
	if err := json.Unmarshal([]byte(endpoints), &api.AvailableEndpoints); err != nil {
		return nil, fmt.Errorf("decode endpoints: %w", err)
	}
	if err := json.Unmarshal([]byte(examples), &api.ExampleCalls); err != nil {
		return nil, fmt.Errorf("decode example calls: %w", err)
	}
	return api, nil
}

func orEmptyEndpoints(e []registry.Endpoint) []registry.Endpoint {
	if e == nil {
		return []registry.Endpoint{}
	}
	return e
}

func orEmptyExamples(e []registry.ExampleCall) []registry.ExampleCall {
	if e == nil {
		return []registry.ExampleCall{}
	}
	return e
}
