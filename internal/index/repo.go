package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/coursesync/internal/apperr"
)

// Row represents a row in the resources table.
type Row struct {
	Path      string    `json:"path"`
	Category  string    `json:"category"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path     string `json:"path"`
	Category string `json:"category"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
}

// Upsert inserts or replaces a resource and its FTS entry within a transaction.
func (db *DB) Upsert(r Row, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
	_, err = tx.Exec(`
		INSERT INTO resources (path, category, title, checksum, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			category   = excluded.category,
			title      = excluded.title,
			checksum   = excluded.checksum,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, r.Path, r.Category, r.Title, r.Checksum, body, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert resource: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, r.Path, r.Title, body); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a resource and its FTS entry.
func (db *DB) Delete(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM resources WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete resource: %w", err)
	}
	return tx.Commit()
}

// Get returns the catalog row of path, or apperr.ErrNotFound.
func (db *DB) Get(path string) (*Row, error) {
	var r Row
	err := db.conn.QueryRow(`
		SELECT path, category, title, checksum, updated_at
		FROM resources WHERE path = ?
	`, path).Scan(&r.Path, &r.Category, &r.Title, &r.Checksum, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get: %w", err)
	}
	return &r, nil
}

// List returns one page of resources ordered by path, optionally restricted
// to a category, plus the total number of matching rows.
func (db *DB) List(category string, limit, offset int) ([]Row, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM resources WHERE (? = '' OR category = ?)
	`, category, category).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT path, category, title, checksum, updated_at
		FROM resources
		WHERE (? = '' OR category = ?)
		ORDER BY path
		LIMIT ? OFFSET ?
	`, category, category, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list: %w", err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Path, &r.Category, &r.Title, &r.Checksum, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// AllChecksums returns the stored checksum of every indexed path.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM resources`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
