package engine

import (
	"context"
	"strings"

	"github.com/roach88/draftkeep/internal/form"
)

// Submit finalizes the submission.
//
// Only the critical fields (name, phone, department, roles, period) can
// block it; on failure a *SubmitError with ErrCodeCriticalValidation names
// the step to return to. The draft is written as a backup before the backend
// is called and is only deleted once the backend confirms. Scores are
// recomputed first so the backend sees the current answers. A backend
// failure returns a *SubmitError with ErrCodeBackendFailure and the backup
// key. When the backup write itself fails the backend is still called, but
// a failed submission then carries no BackupKey.
func (s *Session) Submit(ctx context.Context) (form.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return form.Submission{}, ErrSessionClosed
	}

	if strings.TrimSpace(s.sub.Period) == "" {
		s.sub.Period = s.resolver.Period("")
	}

	if failed := criticalCheck(s.sub, s.resolver.Policy()); len(failed) > 0 {
		var first string
		for _, p := range criticalOrder {
			if msg, ok := failed[p]; ok {
				first = msg
				break
			}
		}
		return form.Submission{}, &SubmitError{
			Code:    ErrCodeCriticalValidation,
			Step:    form.StepProfile,
			Message: first,
			Fields:  failed,
		}
	}

	// A pending score debounce would leave Derived behind the answers.
	s.scoreT.Cancel()
	s.rescoreLocked()

	key := s.key
	backupKey := key
	if s.writeLocked(ctx, WriteBackup) == writeFailed {
		backupKey = ""
	}

	if s.backend == nil {
		msg := "no submission backend is configured; your draft is saved locally"
		if backupKey == "" {
			msg = "no submission backend is configured and the draft could not be saved locally; keep this page open"
		}
		return form.Submission{}, &SubmitError{
			Code:      ErrCodeBackendFailure,
			Message:   msg,
			BackupKey: backupKey,
		}
	}

	final := s.sub.Clone()
	final.IsDraft = false
	saved, err := s.backend.Submit(ctx, final)
	if err != nil {
		msg := "submission failed; your draft is saved locally and can be submitted again"
		if backupKey == "" {
			msg = "submission failed and the draft could not be saved locally; keep this page open and try again"
			s.logger.Error("submission failed with no local backup", "key", key, "error", err)
		} else {
			s.logger.Error("submission failed, draft kept as backup", "key", key, "error", err)
		}
		return form.Submission{}, &SubmitError{
			Code:      ErrCodeBackendFailure,
			Message:   msg,
			BackupKey: backupKey,
			Err:       err,
		}
	}

	at := s.clock.Now().UTC()
	if err := s.store.MarkSubmitted(ctx, key, at); err != nil {
		s.logger.Warn("failed to record submission", "key", key, "error", err)
	}
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete submitted draft", "key", key, "error", err)
	}

	s.sub.IsDraft = false
	s.sub.SubmittedAt = &at
	s.unsaved = false
	s.saveT.Cancel()
	s.validateT.Cancel()
	s.scoreT.Cancel()

	s.logger.Info("submission accepted", "key", key)
	s.publishLocked(EventSubmitted, map[string]any{"key": key})
	return saved, nil
}
