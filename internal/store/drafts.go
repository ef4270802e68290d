package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/draftkeep/internal/form"
)

// Get returns the draft stored under key, or nil if there is none.
//
// A stored record that cannot be decoded is logged and reported as nil, never
// as an error.
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	var (
		data      string
		legacy    bool
		step      int
		lastSaved int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT record, legacy, step, last_saved
		FROM drafts
		WHERE key = ?
	`, key).Scan(&data, &legacy, &step, &lastSaved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draft %q: %w", key, err)
	}

	rec, err := DecodeRecord([]byte(data), legacy, step, fromMillis(lastSaved))
	if err != nil {
		s.logger.Warn("skipping corrupt draft", "key", key, "error", err)
		return nil, nil
	}
	return rec, nil
}

// Set replaces the draft under key with rec and bumps the key's version.
// rec is not modified.
func (s *Store) Set(ctx context.Context, key string, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("set draft %q: nil record", key)
	}
	data, err := EncodeRecord(rec)
	if err != nil {
		return fmt.Errorf("set draft %q: %w", key, err)
	}
	return s.upsert(ctx, key, string(data), rec.CurrentStep, rec.LastSaved, rec.EmergencySave, false)
}

// SetLegacy writes the minimal fallback format: the bare submission plus the
// step and save time in the index row.
func (s *Store) SetLegacy(ctx context.Context, key string, sub form.Submission, step int, at time.Time) error {
	data, err := EncodeLegacy(sub)
	if err != nil {
		return fmt.Errorf("set legacy draft %q: %w", key, err)
	}
	return s.upsert(ctx, key, string(data), step, at, false, true)
}

func (s *Store) upsert(ctx context.Context, key, data string, step int, lastSaved time.Time, emergency, legacy bool) error {
	segment, phone, period := splitKey(key)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts
		(key, identity, phone, period, step, record, last_saved, emergency, legacy, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(key) DO UPDATE SET
			identity   = excluded.identity,
			phone      = excluded.phone,
			period     = excluded.period,
			step       = excluded.step,
			record     = excluded.record,
			last_saved = excluded.last_saved,
			emergency  = excluded.emergency,
			legacy     = excluded.legacy,
			version    = drafts.version + 1
	`,
		key,
		segment,
		phone,
		period,
		step,
		data,
		toMillis(lastSaved),
		boolInt(emergency),
		boolInt(legacy),
	)
	if err != nil {
		return fmt.Errorf("write draft %q: %w", key, err)
	}
	return nil
}

// Delete removes the draft under key. Deleting a missing key is not an
// error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete draft %q: %w", key, err)
	}
	return nil
}

// ListKeys returns every draft key in key order.
func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	return s.queryKeys(ctx, `SELECT key FROM drafts ORDER BY key COLLATE BINARY ASC`)
}

// ListKeysFor returns the keys belonging to who, in key order. who is either
// an identity segment ("jo:9876543210") or a bare phone number.
func (s *Store) ListKeysFor(ctx context.Context, who string) ([]string, error) {
	if who == "" {
		return []string{}, nil
	}
	column := "phone"
	if strings.Contains(who, ":") {
		column = "identity"
	}
	return s.queryKeys(ctx,
		`SELECT key FROM drafts WHERE `+column+` = ? ORDER BY key COLLATE BINARY ASC`, who)
}

func (s *Store) queryKeys(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query draft keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan draft key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate draft keys: %w", err)
	}
	return keys, nil
}

// ListDrafts returns the draft index in key order.
func (s *Store) ListDrafts(ctx context.Context) ([]IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, period, last_saved, version, emergency, legacy
		FROM drafts
		ORDER BY key COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query draft index: %w", err)
	}
	defer rows.Close()

	entries := []IndexEntry{}
	for rows.Next() {
		var (
			e  IndexEntry
			ms int64
		)
		if err := rows.Scan(&e.Key, &e.Period, &ms, &e.Version, &e.Emergency, &e.Legacy); err != nil {
			return nil, fmt.Errorf("scan draft index: %w", err)
		}
		e.LastSaved = fromMillis(ms)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate draft index: %w", err)
	}
	return entries, nil
}

// MarkSubmitted records a successful backend submission for key.
func (s *Store) MarkSubmitted(ctx context.Context, key string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (key, submitted_at)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET submitted_at = excluded.submitted_at
	`, key, toMillis(at))
	if err != nil {
		return fmt.Errorf("mark submitted %q: %w", key, err)
	}
	return nil
}

// SubmittedAt returns when key was last submitted. ok is false if it never
// was.
func (s *Store) SubmittedAt(ctx context.Context, key string) (at time.Time, ok bool, err error) {
	var ms int64
	err = s.db.QueryRowContext(ctx, `SELECT submitted_at FROM submissions WHERE key = ?`, key).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read submission %q: %w", key, err)
	}
	return fromMillis(ms), true, nil
}
