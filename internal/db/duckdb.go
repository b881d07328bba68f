package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
)

// PageKind names the payload shape stored under a page key.
type PageKind string

const (
	KindTechnologies PageKind = "technologies"
	KindDetail       PageKind = "detail"
	KindIndex        PageKind = "index"
	KindChanges      PageKind = "changes"
)

// PageKey builds the primary key of a cached payload. Changes payloads are
// further keyed by their diff key.
func PageKey(kind PageKind, path string, extra ...string) string {
	parts := append([]string{string(kind), path}, extra...)
	return strings.Join(parts, ":")
}

type DB struct {
	conn *sql.DB
}

func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	conn, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS pages (
			key TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			path TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL,
			fetched_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pages_kind ON pages (kind)`,
		`CREATE INDEX IF NOT EXISTS idx_pages_hash ON pages (content_hash)`,
	}

	for _, q := range queries {
		if _, err := db.conn.Exec(q); err != nil {
			return fmt.Errorf("executing %q: %w", q, err)
		}
	}
	return nil
}

// Page records where a fetched payload lives in the CAS.
type Page struct {
	Key         string
	Kind        PageKind
	Path        string
	Title       string
	ContentHash string
	FetchedAt   time.Time
}

// Fresh reports whether the page is younger than ttl at now.
// A zero ttl never considers a page fresh.
func (p *Page) Fresh(ttl time.Duration, now time.Time) bool {
	return now.Sub(p.FetchedAt) < ttl
}

func (db *DB) UpsertPage(p *Page) error {
	if p.FetchedAt.IsZero() {
		p.FetchedAt = time.Now()
	}
	_, err := db.conn.Exec(
		`INSERT INTO pages (key, kind, path, title, content_hash, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET
			title = EXCLUDED.title,
			content_hash = EXCLUDED.content_hash,
			fetched_at = EXCLUDED.fetched_at`,
		p.Key, string(p.Kind), p.Path, p.Title, p.ContentHash, p.FetchedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting page %s: %w", p.Key, err)
	}
	return nil
}

// GetPage returns the page stored under key, or nil if there is none.
func (db *DB) GetPage(key string) (*Page, error) {
	var p Page
	var kind string
	err := db.conn.QueryRow(
		`SELECT key, kind, path, title, content_hash, fetched_at FROM pages WHERE key = ?`, key,
	).Scan(&p.Key, &kind, &p.Path, &p.Title, &p.ContentHash, &p.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting page %s: %w", key, err)
	}
	p.Kind = PageKind(kind)
	return &p, nil
}

// ListPages returns cached pages ordered by key. An empty kind lists all.
func (db *DB) ListPages(kind PageKind) ([]Page, error) {
	query := `SELECT key, kind, path, title, content_hash, fetched_at FROM pages`
	var params []interface{}
	if kind != "" {
		query += ` WHERE kind = ?`
		params = append(params, string(kind))
	}
	query += ` ORDER BY key`

	rows, err := db.conn.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var p Page
		var k string
		if err := rows.Scan(&p.Key, &k, &p.Path, &p.Title, &p.ContentHash, &p.FetchedAt); err != nil {
			return nil, err
		}
		p.Kind = PageKind(k)
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (db *DB) DeletePage(key string) error {
	_, err := db.conn.Exec(`DELETE FROM pages WHERE key = ?`, key)
	return err
}

// DeletePages removes every cached page and returns how many were removed.
func (db *DB) DeletePages() (int, error) {
	res, err := db.conn.Exec(`DELETE FROM pages`)
	if err != nil {
		return 0, fmt.Errorf("deleting pages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

// CountPages returns the number of cached pages per kind.
func (db *DB) CountPages() (map[PageKind]int, error) {
	rows, err := db.conn.Query(`SELECT kind, COUNT(*) FROM pages GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("counting pages: %w", err)
	}
	defer rows.Close()

	counts := make(map[PageKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[PageKind(kind)] = n
	}
	return counts, rows.Err()
}
