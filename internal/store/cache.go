package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"profilepayloads/internal/repository"
)

var _ repository.IndexCache = (*Cache)(nil)

// Cache keeps the last fetched index of every repository artifact and a
// history of the updates those indexes announced.
type Cache struct {
	sql *sql.DB
}

// HistoryEntry is one update announced by a fetched index.
type HistoryEntry struct {
	OccurredAt time.Time `json:"occurred_at"`
	Repository string    `json:"repository"`
	repository.Item
}

func OpenCache(path string) (*Cache, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("DOC_CACHE_OPEN: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("DOC_CACHE_OPEN: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS indexes (
  repository  TEXT NOT NULL,
  artifact    TEXT NOT NULL,
  data        BLOB NOT NULL,
  fetched_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY(repository, artifact)
);
CREATE TABLE IF NOT EXISTS update_history (
  id                INTEGER PRIMARY KEY,
  occurred_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  repository        TEXT NOT NULL,
  artifact          TEXT NOT NULL,
  folder            TEXT NOT NULL,
  domain_identifier TEXT NOT NULL,
  version           INTEGER NOT NULL DEFAULT 0,
  hash              TEXT,
  path              TEXT
);
CREATE INDEX IF NOT EXISTS idx_history_time ON update_history(occurred_at);
CREATE INDEX IF NOT EXISTS idx_history_repository ON update_history(repository, occurred_at);
    `); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("DOC_CACHE_SCHEMA: %w", err)
	}
	return &Cache{sql: db}, nil
}

func (c *Cache) Close() error {
	if c == nil || c.sql == nil {
		return nil
	}
	return c.sql.Close()
}

// SaveIndex replaces the cached index of one repository artifact.
func (c *Cache) SaveIndex(ctx context.Context, repo string, artifact repository.Artifact, data []byte) error {
	_, err := c.sql.ExecContext(ctx, `INSERT INTO indexes(repository, artifact, data, fetched_at) VALUES(?,?,?,CURRENT_TIMESTAMP)
ON CONFLICT(repository, artifact) DO UPDATE SET data = excluded.data, fetched_at = excluded.fetched_at`, repo, string(artifact), data)
	return err
}

func (c *Cache) LoadIndex(ctx context.Context, repo string, artifact repository.Artifact) ([]byte, bool, error) {
	var data []byte
	err := c.sql.QueryRowContext(ctx, "SELECT data FROM indexes WHERE repository = ? AND artifact = ?", repo, string(artifact)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// IndexFetchedAt reports when the cached index was last written.
func (c *Cache) IndexFetchedAt(ctx context.Context, repo string, artifact repository.Artifact) (time.Time, bool, error) {
	var fetchedAt string
	err := c.sql.QueryRowContext(ctx, "SELECT fetched_at FROM indexes WHERE repository = ? AND artifact = ?", repo, string(artifact)).Scan(&fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return parseTimestamp(fetchedAt), true, nil
}

// DeleteRepository drops the cached indexes and history of repo.
func (c *Cache) DeleteRepository(ctx context.Context, repo string) error {
	tx, err := c.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM indexes WHERE repository = ?", repo); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM update_history WHERE repository = ?", repo); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// RecordUpdates appends items to the update history of repo.
func (c *Cache) RecordUpdates(ctx context.Context, repo string, items []repository.Item) (err error) {
	if len(items) == 0 {
		return nil
	}
	tx, err := c.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO update_history(repository, artifact, folder, domain_identifier, version, hash, path) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, it := range items {
		if _, err = stmt.ExecContext(ctx, repo, string(it.Artifact), it.Folder, it.DomainIdentifier, it.Version, nullIfEmpty(it.Hash), nullIfEmpty(it.Path)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// History returns the most recent entries, newest first. An empty repo
// lists every repository.
func (c *Cache) History(ctx context.Context, repo string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	q := "SELECT occurred_at, repository, artifact, folder, domain_identifier, version, hash, path FROM update_history"
	args := []any{}
	if repo != "" {
		q += " WHERE repository = ?"
		args = append(args, repo)
	}
	q += " ORDER BY occurred_at DESC, id DESC LIMIT ?"
	args = append(args, limit)
	rows, err := c.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []HistoryEntry{}
	for rows.Next() {
		var (
			e          HistoryEntry
			occurredAt string
			artifact   string
			hash, path sql.NullString
		)
		if err := rows.Scan(&occurredAt, &e.Repository, &artifact, &e.Folder, &e.DomainIdentifier, &e.Version, &hash, &path); err != nil {
			return nil, err
		}
		e.OccurredAt = parseTimestamp(occurredAt)
		e.Artifact = repository.Artifact(artifact)
		e.Hash = hash.String
		e.Path = path.String
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// parseTimestamp accepts the CURRENT_TIMESTAMP layout or RFC 3339.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
