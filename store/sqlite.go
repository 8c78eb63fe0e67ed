// Package store persists the last inbox snapshot and a per-message
// classification cache in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/bassamadnan/mailsort/inbox"
)

// ErrNoSnapshot is returned by LoadSnapshot before the first successful run.
var ErrNoSnapshot = errors.New("no snapshot saved")

// Snapshot is the classified inbox of the last completed run.
type Snapshot struct {
	RunID   string
	SavedAt time.Time
	Records []inbox.EmailRecord
}

// SQLiteStore implements the cache on a local SQLite file.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and applies
// pending migrations. ":memory:" gives a throwaway store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// one connection keeps ":memory:" a single database and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tableCount > 0 {
		if err := s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

type messageRow struct {
	Position  int    `db:"position"`
	MessageID string `db:"message_id"`
	ThreadID  string `db:"thread_id"`
	Subject   string `db:"subject"`
	Sender    string `db:"sender"`
	Snippet   string `db:"snippet"`
	SentAt    int64  `db:"sent_at"`
	Unread    bool   `db:"unread"`
	Labels    string `db:"labels"`
	Category  string `db:"category"`
	Degraded  bool   `db:"degraded"`
}

func (r messageRow) record() inbox.EmailRecord {
	rec := inbox.EmailRecord{
		ID:       r.MessageID,
		ThreadID: r.ThreadID,
		Subject:  r.Subject,
		From:     r.Sender,
		Snippet:  r.Snippet,
		Date:     time.Unix(0, r.SentAt),
		Unread:   r.Unread,
		Degraded: r.Degraded,
	}
	_ = json.Unmarshal([]byte(r.Labels), &rec.Labels)
	_ = rec.Category.UnmarshalText([]byte(r.Category))
	return rec
}

// SaveSnapshot replaces the stored snapshot with records and records every
// classified message in the cache. Degraded categories are kept in the
// snapshot but never cached. A cached entry keeps its original
// timestamp while its category is unchanged, so re-saving does not extend
// its lifetime.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, runID string, records []inbox.EmailRecord, at time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshot_messages"); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO snapshot (id, run_id, saved_at) VALUES (1, ?, ?)",
		runID, at.UnixNano(),
	); err != nil {
		return fmt.Errorf("writing snapshot header: %w", err)
	}

	insert, err := tx.PreparexContext(ctx, `
		INSERT INTO snapshot_messages (
			position, message_id, thread_id, subject, sender,
			snippet, sent_at, unread, labels, category, degraded
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing snapshot insert: %w", err)
	}
	defer insert.Close()

	cache, err := tx.PreparexContext(ctx, `
		INSERT INTO classifications (message_id, category, classified_at) VALUES (?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			category = excluded.category,
			classified_at = excluded.classified_at
		WHERE classifications.category != excluded.category`)
	if err != nil {
		return fmt.Errorf("preparing cache upsert: %w", err)
	}
	defer cache.Close()

	for i, r := range records {
		labels, err := json.Marshal(r.Labels)
		if err != nil {
			return fmt.Errorf("marshaling labels for %s: %w", r.ID, err)
		}
		category := ""
		if r.Classified() {
			category = r.Category.ID()
		}
		if _, err := insert.ExecContext(ctx,
			i, r.ID, r.ThreadID, r.Subject, r.From,
			r.Snippet, r.Date.UnixNano(), r.Unread, string(labels), category, r.Degraded,
		); err != nil {
			return fmt.Errorf("saving message %s: %w", r.ID, err)
		}
		if !r.Category.Valid() || r.Degraded {
			continue
		}
		if _, err := cache.ExecContext(ctx, r.ID, category, at.UnixNano()); err != nil {
			return fmt.Errorf("caching category for %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// LoadSnapshot returns the last saved snapshot in its saved order.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	var header struct {
		RunID   string `db:"run_id"`
		SavedAt int64  `db:"saved_at"`
	}
	err := s.db.GetContext(ctx, &header, "SELECT run_id, saved_at FROM snapshot WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading snapshot header: %w", err)
	}

	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM snapshot_messages ORDER BY position"); err != nil {
		return Snapshot{}, fmt.Errorf("reading snapshot messages: %w", err)
	}
	snap := Snapshot{
		RunID:   header.RunID,
		SavedAt: time.Unix(0, header.SavedAt),
		Records: make([]inbox.EmailRecord, 0, len(rows)),
	}
	for _, r := range rows {
		snap.Records = append(snap.Records, r.record())
	}
	return snap, nil
}

// CachedCategories returns the categories for ids that were classified at
// or after since. Ids without a fresh entry are absent from the map.
func (s *SQLiteStore) CachedCategories(ctx context.Context, ids []string, since time.Time) (map[string]inbox.Category, error) {
	out := make(map[string]inbox.Category, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(
		"SELECT message_id, category FROM classifications WHERE message_id IN (?) AND classified_at >= ?",
		ids, since.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("building cache query: %w", err)
	}
	var rows []struct {
		MessageID string `db:"message_id"`
		Category  string `db:"category"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("reading cached categories: %w", err)
	}
	for _, r := range rows {
		if c, ok := inbox.ParseCategory(r.Category); ok {
			out[r.MessageID] = c
		}
	}
	return out, nil
}

// Prune drops cache entries older than before.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM classifications WHERE classified_at < ?", before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
