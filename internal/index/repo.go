package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Row is one catalogued document.
type Row struct {
	Path       string
	Title      string
	Type       string
	Subtype    string
	Category   string
	Tags       []string
	ShipFactor int
	Deprecated bool
	Checksum   string
	Modified   time.Time
}

// SearchResult is one search hit.
type SearchResult struct {
	Path       string `json:"path"`
	Title      string `json:"title"`
	ShipFactor int    `json:"ship_factor"`
	Deprecated bool   `json:"deprecated"`
	Snippet    string `json:"snippet"`
}

// UpsertDocument inserts or replaces a document, its FTS entry and its
// outgoing references within a transaction.
func (db *DB) UpsertDocument(r Row, body string, refs []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("index: encode tags: %w", err)
	}
	var modified any
	if !r.Modified.IsZero() {
		modified = r.Modified.UTC()
	}

	_, err = tx.Exec(`
		INSERT INTO documents (path, title, type, subtype, category, tags, ship_factor, deprecated, checksum, body, modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title       = excluded.title,
			type        = excluded.type,
			subtype     = excluded.subtype,
			category    = excluded.category,
			tags        = excluded.tags,
			ship_factor = excluded.ship_factor,
			deprecated  = excluded.deprecated,
			checksum    = excluded.checksum,
			body        = excluded.body,
			modified    = excluded.modified
	`, r.Path, r.Title, r.Type, r.Subtype, r.Category, string(tagsJSON), r.ShipFactor, r.Deprecated, r.Checksum, body, modified)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	if err := ftsUpsert(tx, r.Path, r.Title, body, r.Tags); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM doc_references WHERE source = ?`, r.Path); err != nil {
		return fmt.Errorf("index: clear references: %w", err)
	}
	if len(refs) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO doc_references (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare reference insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range refs {
			if _, err := stmt.Exec(r.Path, target); err != nil {
				return fmt.Errorf("index: insert reference: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteDocument removes a document, its FTS entry and outgoing references.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM doc_references WHERE source = ?`, path); err != nil {
		return fmt.Errorf("index: delete references: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete document: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a document, or "" if it is not
// catalogued.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns the stored checksum of every catalogued document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
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

// Referrers returns the paths of documents whose references include target,
// in path order.
func (db *DB) Referrers(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM doc_references WHERE target = ? ORDER BY source`, target)
	if err != nil {
		return nil, fmt.Errorf("index: referrers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Count returns the number of catalogued documents.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}
