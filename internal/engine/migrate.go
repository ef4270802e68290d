package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/draftkeep/internal/store"
)

// MigrateOutcome reports what Migrate did.
type MigrateOutcome string

const (
	// OutcomeMigrated: the record now lives under the target key.
	OutcomeMigrated MigrateOutcome = "migrated"

	// OutcomeDiscarded: the target already held a newer record, so the
	// legacy record was deleted without being copied.
	OutcomeDiscarded MigrateOutcome = "discarded"

	// OutcomeNoop: nothing to migrate (same key or no legacy record).
	OutcomeNoop MigrateOutcome = "noop"

	// OutcomeFailed: the target write failed; the legacy record is kept.
	OutcomeFailed MigrateOutcome = "failed"
)

// MigrateResult is the outcome for one legacy key.
type MigrateResult struct {
	From    string
	To      string
	Outcome MigrateOutcome
}

// Migrator moves drafts from provisional or legacy keys to the canonical
// key.
type Migrator struct {
	store   DraftStore
	now     func() time.Time
	logger  *slog.Logger
	metrics *Metrics
}

// NewMigrator creates a migrator. A nil now uses time.Now and a nil logger
// uses slog.Default().
func NewMigrator(st DraftStore, now func() time.Time, logger *slog.Logger, metrics *Metrics) *Migrator {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{store: st, now: now, logger: logger, metrics: metrics}
}

// Migrate writes rec under to with Migrated set and a fresh LastSaved, then
// deletes from.
//
// If to already holds a record saved after rec, rec is discarded: from is
// deleted and to is left alone. A failed delete of from is logged and never
// rolls back the write under to.
func (m *Migrator) Migrate(ctx context.Context, from, to string, rec *store.Record) (MigrateOutcome, error) {
	outcome, err := m.migrate(ctx, from, to, rec)
	m.metrics.migration(outcome)
	return outcome, err
}

func (m *Migrator) migrate(ctx context.Context, from, to string, rec *store.Record) (MigrateOutcome, error) {
	if from == to || rec == nil {
		return OutcomeNoop, nil
	}

	existing, err := m.store.Get(ctx, to)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("migrate %s -> %s: read target: %w", from, to, err)
	}
	if existing != nil && existing.LastSaved.After(rec.LastSaved) {
		m.logger.Info("discarding legacy draft older than canonical draft",
			"from", from,
			"to", to,
		)
		m.deleteLegacy(ctx, from)
		return OutcomeDiscarded, nil
	}

	moved := *rec
	moved.Submission = rec.Submission.Clone()
	moved.Migrated = true
	moved.Legacy = false
	moved.LastSaved = m.now().UTC()
	if err := m.store.Set(ctx, to, &moved); err != nil {
		return OutcomeFailed, fmt.Errorf("migrate %s -> %s: write target: %w", from, to, err)
	}

	m.deleteLegacy(ctx, from)
	m.logger.Info("draft migrated", "from", from, "to", to)
	return OutcomeMigrated, nil
}

func (m *Migrator) deleteLegacy(ctx context.Context, key string) {
	if err := m.store.Delete(ctx, key); err != nil {
		m.logger.Warn("failed to delete legacy draft after migration",
			"key", key,
			"error", err,
		)
	}
}

// MigrateLegacy migrates every existing draft under keys[1:] into keys[0],
// in order. keys is typically identity.Resolver.EnumerateLegacyKeys output.
// Keys without a readable draft are skipped. Failures are logged and the
// walk continues.
func (m *Migrator) MigrateLegacy(ctx context.Context, keys []string) []MigrateResult {
	if len(keys) < 2 {
		return nil
	}
	target := keys[0]

	var results []MigrateResult
	for _, from := range keys[1:] {
		if from == target {
			continue
		}
		rec, err := m.store.Get(ctx, from)
		if err != nil {
			m.logger.Warn("failed to read legacy draft", "key", from, "error", err)
			continue
		}
		if rec == nil {
			continue
		}
		outcome, err := m.Migrate(ctx, from, target, rec)
		if err != nil {
			m.logger.Error("draft migration failed", "from", from, "to", target, "error", err)
		}
		results = append(results, MigrateResult{From: from, To: target, Outcome: outcome})
	}
	return results
}
