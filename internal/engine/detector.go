package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/draftkeep/internal/store"
)

// Crash candidate reasons.
const (
	ReasonEmergencySave = "emergency_save"
	ReasonUnsubmitted   = "unsubmitted_draft"
)

// CrashCandidate is a draft that looks like it was left behind by an
// interrupted session.
type CrashCandidate struct {
	Key    string
	Record *store.Record
	Reason string
}

// Draft is a stored draft belonging to a known user.
type Draft struct {
	Key    string
	Record *store.Record
}

// Detector scans the draft store for recoverable work.
type Detector struct {
	store  DraftStore
	window time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewDetector creates a detector. Drafts last saved more than window ago are
// ignored by crash scans; a zero window disables the cutoff.
func NewDetector(st DraftStore, window time.Duration, now func() time.Time, logger *slog.Logger) *Detector {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{store: st, window: window, now: now, logger: logger}
}

// ScanForCrashes returns drafts that have a save time, were not submitted at
// or after that time, fall inside the recovery window and are either
// emergency saves or carry significant content. Newest first. Corrupt drafts
// are skipped.
func (d *Detector) ScanForCrashes(ctx context.Context) ([]CrashCandidate, error) {
	entries, err := d.store.ListDrafts(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan for crashes: %w", err)
	}

	now := d.now()
	var out []CrashCandidate
	for _, e := range entries {
		if e.LastSaved.IsZero() || !d.inWindow(now, e.LastSaved) {
			continue
		}
		rec, ok := d.load(ctx, e.Key)
		if !ok || rec.LastSaved.IsZero() || !d.inWindow(now, rec.LastSaved) {
			continue
		}

		reason := ReasonUnsubmitted
		switch {
		case rec.EmergencySave:
			reason = ReasonEmergencySave
		case !rec.Submission.IsSignificant():
			continue
		}
		out = append(out, CrashCandidate{Key: e.Key, Record: rec, Reason: reason})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i].Record, out[j].Record, out[i].Key, out[j].Key)
	})
	return out, nil
}

// ScanForUserDrafts returns the unsubmitted drafts filed under who (an
// identity segment or bare phone), newest first.
func (d *Detector) ScanForUserDrafts(ctx context.Context, who string) ([]Draft, error) {
	keys, err := d.store.ListKeysFor(ctx, who)
	if err != nil {
		return nil, fmt.Errorf("scan for user drafts: %w", err)
	}

	var out []Draft
	for _, key := range keys {
		rec, ok := d.load(ctx, key)
		if !ok {
			continue
		}
		out = append(out, Draft{Key: key, Record: rec})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i].Record, out[j].Record, out[i].Key, out[j].Key)
	})
	return out, nil
}

// load reads key and drops it if unreadable or already submitted.
func (d *Detector) load(ctx context.Context, key string) (*store.Record, bool) {
	rec, err := d.store.Get(ctx, key)
	if err != nil {
		d.logger.Warn("failed to read draft during scan", "key", key, "error", err)
		return nil, false
	}
	if rec == nil {
		return nil, false
	}
	at, submitted, err := d.store.SubmittedAt(ctx, key)
	if err != nil {
		d.logger.Warn("failed to read submission log during scan", "key", key, "error", err)
		return nil, false
	}
	if submitted && !at.Before(rec.LastSaved) {
		return nil, false
	}
	return rec, true
}

func (d *Detector) inWindow(now, saved time.Time) bool {
	return d.window <= 0 || now.Sub(saved) <= d.window
}

func newer(a, b *store.Record, ka, kb string) bool {
	if !a.LastSaved.Equal(b.LastSaved) {
		return a.LastSaved.After(b.LastSaved)
	}
	return ka < kb
}
