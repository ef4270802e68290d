package engine

import (
	"context"
	"strings"

	"github.com/roach88/draftkeep/internal/store"
)

// WriteMode says what triggered a draft write.
type WriteMode string

const (
	WriteDebounced  WriteMode = "debounced"
	WriteNavigation WriteMode = "navigation"
	WriteManual     WriteMode = "manual"
	WriteHidden     WriteMode = "hidden"
	WriteEmergency  WriteMode = "emergency"
	WriteBackup     WriteMode = "backup"
)

type writeResult int

const (
	writeOK writeResult = iota
	writeSkipped
	writeFailed
)

// UnloadResult is returned by HandleUnload.
type UnloadResult struct {
	// Saved is true if the draft was written.
	Saved bool

	// WarnUnsaved asks the environment to raise its "unsaved changes"
	// prompt: there were unsaved edits and the write did not complete.
	WarnUnsaved bool
}

// SaveNow writes the draft immediately ("save section"). It reports whether
// a write happened.
func (s *Session) SaveNow(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.writeLocked(ctx, WriteManual) == writeOK
}

// GoToStep moves to step (clamped to the form's range), writes the draft
// and schedules validation of the new step. Navigation never fails:
// outstanding validation errors stay visible but do not block it.
func (s *Session) GoToStep(ctx context.Context, step int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.step = clampStep(step)
	if s.closed {
		return s.step
	}

	s.writeLocked(ctx, WriteNavigation)
	s.validateT.Trigger(s.onValidateTimer)
	return s.step
}

// HandleVisibilityHidden writes the draft when the environment is
// backgrounded.
func (s *Session) HandleVisibilityHidden(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.writeLocked(ctx, WriteHidden) == writeOK
}

// HandleUnload performs the emergency write synchronously and marks the
// record as an emergency save.
func (s *Session) HandleUnload(ctx context.Context) UnloadResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return UnloadResult{}
	}

	hadUnsaved := s.unsaved
	res := s.writeLocked(ctx, WriteEmergency)
	return UnloadResult{
		Saved:       res == writeOK,
		WarnUnsaved: hadUnsaved && res == writeFailed,
	}
}

// writeLocked writes the full current snapshot under the current key.
// Empty sessions (no identity, no period) are skipped. A failed write falls
// back to the legacy format; failures never reach the caller.
func (s *Session) writeLocked(ctx context.Context, mode WriteMode) writeResult {
	if !s.sub.HasIdentity() && strings.TrimSpace(s.sub.Period) == "" {
		s.metrics.write(mode, "skipped")
		return writeSkipped
	}

	now := s.clock.Now().UTC()
	rec := &store.Record{
		Submission:  s.sub.Clone(),
		CurrentStep: s.step,
		LastSaved:   now,
		Session: store.SessionInfo{
			SessionID: s.id,
			Client:    s.client,
			Host:      s.host,
			Timestamp: now,
		},
		EmergencySave: mode == WriteEmergency,
	}

	s.warnForeignLocked(ctx)

	outcome := "ok"
	if err := s.store.Set(ctx, s.key, rec); err != nil {
		s.logger.Warn("draft write failed, falling back to legacy format",
			"key", s.key,
			"mode", string(mode),
			"error", err,
		)
		if lerr := s.store.SetLegacy(ctx, s.key, rec.Submission, s.step, now); lerr != nil {
			s.logger.Error("legacy draft write failed",
				"key", s.key,
				"mode", string(mode),
				"error", lerr,
			)
			s.metrics.write(mode, "failed")
			return writeFailed
		}
		outcome = "fallback"
	}
	s.metrics.write(mode, outcome)

	s.unsaved = false
	s.lastSaved = now
	s.written[s.key] = true
	s.saveT.Cancel()
	s.logger.Debug("draft saved", "key", s.key, "mode", string(mode), "step", s.step)
	s.publishLocked(EventSaved, map[string]any{
		"key":     s.key,
		"mode":    string(mode),
		"outcome": outcome,
		"step":    s.step,
	})
	return writeOK
}

// warnForeignLocked logs when the write is about to replace a record that
// another session saved after this session's last save. Last write wins.
func (s *Session) warnForeignLocked(ctx context.Context) {
	prev, err := s.store.Get(ctx, s.key)
	if err != nil || prev == nil {
		return
	}
	foreign := prev.Session.SessionID != "" && prev.Session.SessionID != s.id
	if foreign && prev.LastSaved.After(s.lastSaved) {
		s.logger.Warn("overwriting draft saved by another session",
			"key", s.key,
			"other_session", prev.Session.SessionID,
			"other_saved", prev.LastSaved,
		)
	}
}

func (s *Session) onSaveTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.unsaved {
		return
	}
	s.writeLocked(s.ctx, WriteDebounced)
}

func (s *Session) onValidateTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.result = s.validation.ValidateStep(s.step, s.sub)
	s.metrics.recompute("validate")
	s.publishLocked(EventValidated, map[string]any{
		"step":     s.step,
		"errors":   len(s.result.Errors),
		"warnings": len(s.result.Warnings),
	})
}
