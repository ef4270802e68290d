package engine

import (
	"context"
	"time"

	"github.com/roach88/draftkeep/internal/form"
	"github.com/roach88/draftkeep/internal/store"
)

// DraftStore is the durable key-value store drafts are kept in.
// Implemented by store.Store (SQLite) and badgerkv.Store.
type DraftStore interface {
	Get(ctx context.Context, key string) (*store.Record, error)
	Set(ctx context.Context, key string, rec *store.Record) error
	SetLegacy(ctx context.Context, key string, sub form.Submission, step int, at time.Time) error
	Delete(ctx context.Context, key string) error
	ListKeys(ctx context.Context) ([]string, error)
	ListKeysFor(ctx context.Context, who string) ([]string, error)
	ListDrafts(ctx context.Context) ([]store.IndexEntry, error)
	MarkSubmitted(ctx context.Context, key string, at time.Time) error
	SubmittedAt(ctx context.Context, key string) (time.Time, bool, error)
}

// StepValidator checks one form step and returns free-text messages.
type StepValidator interface {
	ValidateStep(step int, sub form.Submission) (errs, warnings []string)
}

// FieldValidator checks a single field value as it is typed.
type FieldValidator interface {
	ValidateField(path form.Path, value any, sub form.Submission) (errMsg, warning string)
}

// Scorer computes the derived block of a submission.
type Scorer interface {
	Score(sub form.Submission) form.Derived
}

// Backend accepts finalized submissions. Submit must be an idempotent upsert
// keyed by identity and period.
type Backend interface {
	Submit(ctx context.Context, sub form.Submission) (form.Submission, error)
}

// IDGenerator generates session IDs.
// Implemented by UUIDv7Generator (production) and testutil.SequentialIDs.
type IDGenerator interface {
	Generate() string
}
