// Package badgerkv implements the draft store on an embedded Badger
// key-value database.
//
// Drafts live under "d/<draft key>" and submission timestamps under
// "s/<draft key>". Each draft value is a small JSON envelope holding the
// index fields next to the encoded record, so listing the index never needs
// to decode whole submissions.
package badgerkv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/draftkeep/internal/form"
	"github.com/roach88/draftkeep/internal/identity"
	"github.com/roach88/draftkeep/internal/store"
)

const (
	draftPrefix      = "d/"
	submissionPrefix = "s/"
)

// Config configures the Badger store.
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory keeps everything in memory. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// Logger receives Badger's internal logs. Nil disables them.
	Logger *slog.Logger
}

// DefaultConfig returns a durable configuration for path.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a draft store backed by Badger.
//
// Thread-safety: all methods are safe for concurrent use; Badger transactions
// serialize conflicting writes.
type Store struct {
	db *badger.DB
}

// envelope is the stored value for one draft.
type envelope struct {
	Version   int64           `json:"version"`
	Legacy    bool            `json:"legacy,omitempty"`
	Emergency bool            `json:"emergency,omitempty"`
	Step      int             `json:"step"`
	LastSaved int64           `json:"lastSaved"`
	Record    json.RawMessage `json:"record"`
}

// Open opens or creates a Badger draft store.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the draft under key, or nil if there is none or it cannot be
// decoded.
func (s *Store) Get(ctx context.Context, key string) (*store.Record, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(draftPrefix + key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draft %q: %w", key, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.Warn("skipping corrupt draft", "key", key, "error", err)
		return nil, nil
	}
	rec, err := store.DecodeRecord(env.Record, env.Legacy, env.Step, fromMillis(env.LastSaved))
	if err != nil {
		slog.Warn("skipping corrupt draft", "key", key, "error", err)
		return nil, nil
	}
	return rec, nil
}

// Set replaces the draft under key and bumps its version.
func (s *Store) Set(ctx context.Context, key string, rec *store.Record) error {
	if rec == nil {
		return fmt.Errorf("set draft %q: nil record", key)
	}
	data, err := store.EncodeRecord(rec)
	if err != nil {
		return fmt.Errorf("set draft %q: %w", key, err)
	}
	return s.put(key, envelope{
		Emergency: rec.EmergencySave,
		Step:      rec.CurrentStep,
		LastSaved: toMillis(rec.LastSaved),
		Record:    data,
	})
}

// SetLegacy writes the minimal fallback format.
func (s *Store) SetLegacy(ctx context.Context, key string, sub form.Submission, step int, at time.Time) error {
	data, err := store.EncodeLegacy(sub)
	if err != nil {
		return fmt.Errorf("set legacy draft %q: %w", key, err)
	}
	return s.put(key, envelope{
		Legacy:    true,
		Step:      step,
		LastSaved: toMillis(at),
		Record:    data,
	})
}

func (s *Store) put(key string, env envelope) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		prev, err := readEnvelope(txn, key)
		switch {
		case err == nil:
			env.Version = prev.Version + 1
		case errors.Is(err, badger.ErrKeyNotFound):
			env.Version = 1
		default:
			// A corrupt previous value is overwritten.
			env.Version = 1
		}
		value, err := json.Marshal(env)
		if err != nil {
			return err
		}
		return txn.Set([]byte(draftPrefix+key), value)
	})
	if err != nil {
		return fmt.Errorf("write draft %q: %w", key, err)
	}
	return nil
}

// Delete removes the draft under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(draftPrefix + key))
	})
	if err != nil {
		return fmt.Errorf("delete draft %q: %w", key, err)
	}
	return nil
}

// ListKeys returns every draft key in key order.
func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	return s.keys(func(string) bool { return true })
}

// ListKeysFor returns the keys belonging to who (an identity segment or a
// bare phone), in key order.
func (s *Store) ListKeysFor(ctx context.Context, who string) ([]string, error) {
	if who == "" {
		return []string{}, nil
	}
	return s.keys(func(key string) bool { return identity.Matches(key, who) })
}

func (s *Store) keys(keep func(string) bool) ([]string, error) {
	keys := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(draftPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key()[len(draftPrefix):])
			if keep(key) {
				keys = append(keys, key)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list draft keys: %w", err)
	}
	return keys, nil
}

// ListDrafts returns the draft index in key order. Entries whose envelope
// cannot be decoded are logged and skipped.
func (s *Store) ListDrafts(ctx context.Context) ([]store.IndexEntry, error) {
	entries := []store.IndexEntry{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(draftPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key()[len(draftPrefix):])
			var env envelope
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &env)
			})
			if err != nil {
				slog.Warn("skipping corrupt draft index entry", "key", key, "error", err)
				continue
			}
			k, _ := identity.Parse(key)
			entries = append(entries, store.IndexEntry{
				Key:       key,
				Period:    k.Period,
				LastSaved: fromMillis(env.LastSaved),
				Version:   env.Version,
				Emergency: env.Emergency,
				Legacy:    env.Legacy,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	return entries, nil
}

// MarkSubmitted records a successful submission for key.
func (s *Store) MarkSubmitted(ctx context.Context, key string, at time.Time) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(submissionPrefix+key), []byte(strconv.FormatInt(toMillis(at), 10)))
	})
	if err != nil {
		return fmt.Errorf("mark submitted %q: %w", key, err)
	}
	return nil
}

// SubmittedAt returns when key was last submitted.
func (s *Store) SubmittedAt(ctx context.Context, key string) (at time.Time, ok bool, err error) {
	var ms int64
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(submissionPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			ms, err = strconv.ParseInt(string(val), 10, 64)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read submission %q: %w", key, err)
	}
	return fromMillis(ms), true, nil
}

func readEnvelope(txn *badger.Txn, key string) (*envelope, error) {
	item, err := txn.Get([]byte(draftPrefix + key))
	if err != nil {
		return nil, err
	}
	var env envelope
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &env)
	})
	if err != nil {
		return nil, err
	}
	return &env, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
