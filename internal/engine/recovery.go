package engine

import (
	"context"
	"fmt"

	"github.com/roach88/draftkeep/internal/form"
)

// PromptKind says which recovery prompt is pending.
type PromptKind string

const (
	PromptNone       PromptKind = ""
	PromptCrash      PromptKind = "crash"
	PromptUserDrafts PromptKind = "user_drafts"
)

// Prompt is the pending recovery offer shown to the user.
type Prompt struct {
	Kind    PromptKind
	Crashes []CrashCandidate
	Drafts  []Draft
	Visible bool
}

// Prompt returns the current recovery prompt.
func (s *Session) Prompt() Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.prompt
	p.Crashes = append([]CrashCandidate(nil), s.prompt.Crashes...)
	p.Drafts = append([]Draft(nil), s.prompt.Drafts...)
	return p
}

// Start schedules the crash scan after the settle delay. Call it once the
// session is mounted; calling it again reschedules the scan.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.scanT.Trigger(s.onScanTimer)
}

func (s *Session) onScanTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.userDraftsShown {
		return
	}

	found, err := s.detector.ScanForCrashes(s.ctx)
	if err != nil {
		s.logger.Warn("crash scan failed", "error", err)
		return
	}
	var crashes []CrashCandidate
	for _, c := range found {
		if s.skipLocked(c.Key, c.Record.Session.SessionID) {
			continue
		}
		crashes = append(crashes, c)
	}
	s.metrics.candidates(len(crashes))
	if len(crashes) == 0 {
		return
	}

	s.prompt = Prompt{Kind: PromptCrash, Crashes: crashes, Visible: true}
	s.logger.Info("crash candidates found", "count", len(crashes))
	s.publishLocked(EventPrompt, map[string]any{
		"kind":  string(PromptCrash),
		"count": len(crashes),
		"keys":  crashKeys(crashes),
	})
}

func (s *Session) onUserScanTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.confirmed == nil {
		return
	}

	found, err := s.detector.ScanForUserDrafts(s.ctx, s.confirmed.Phone)
	if err != nil {
		s.logger.Warn("user draft scan failed", "error", err)
		return
	}
	var drafts []Draft
	for _, d := range found {
		if s.skipLocked(d.Key, d.Record.Session.SessionID) {
			continue
		}
		drafts = append(drafts, d)
	}
	if len(drafts) == 0 {
		return
	}

	// User drafts replace any crash prompt for the rest of the session.
	s.userDraftsShown = true
	s.scanT.Cancel()
	s.prompt = Prompt{Kind: PromptUserDrafts, Drafts: drafts, Visible: true}
	keys := make([]string, len(drafts))
	for i, d := range drafts {
		keys[i] = d.Key
	}
	s.publishLocked(EventPrompt, map[string]any{
		"kind":  string(PromptUserDrafts),
		"count": len(drafts),
		"keys":  keys,
	})
}

// skipLocked drops drafts this session already resumed or discarded, and
// drafts it wrote itself.
func (s *Session) skipLocked(key, sessionID string) bool {
	return s.handled[key] || sessionID == s.id
}

// ResumeDraft replaces the submission and step with the draft stored under
// key. The session then has no unsaved changes and the draft no longer
// appears in any prompt of this session.
func (s *Session) ResumeDraft(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	rec, err := s.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("resume draft %q: %w", key, err)
	}
	if rec == nil {
		return fmt.Errorf("resume draft %q: %w", key, ErrDraftNotFound)
	}

	s.sub = rec.Submission.Clone()
	s.step = clampStep(rec.CurrentStep)
	s.unsaved = false
	s.lastSaved = rec.LastSaved
	s.saveT.Cancel()
	s.handled[key] = true
	s.dropFromPromptLocked(key)
	s.prompt.Visible = false

	s.key = key
	s.written = map[string]bool{key: true}
	s.refreshKeyLocked(ctx, true)

	s.logger.Info("draft resumed", "key", key, "step", s.step)
	s.publishLocked(EventResumed, map[string]any{"key": key, "step": s.step})
	s.validateT.Trigger(s.onValidateTimer)
	if s.scorer != nil {
		s.scoreT.Trigger(s.onScoreTimer)
	}
	return nil
}

// StartFresh discards the offered drafts and restarts from an empty
// submission at step 1. Stored drafts are not touched; the next write under
// the same key overwrites them. A confirmed identity is kept.
func (s *Session) StartFresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	for _, c := range s.prompt.Crashes {
		s.handled[c.Key] = true
	}
	for _, d := range s.prompt.Drafts {
		s.handled[d.Key] = true
	}
	s.prompt = Prompt{Kind: s.prompt.Kind}

	s.sub = form.Empty("")
	if s.confirmed != nil {
		s.sub.Identity.Name = s.confirmed.Name
		s.sub.Identity.Phone = s.confirmed.Phone
	}
	s.step = form.StepProfile
	s.unsaved = false
	s.saveT.Cancel()
	s.validateT.Cancel()
	s.scoreT.Cancel()
	s.result = emptyResult(s.step)
	s.fieldResults = map[form.Path]FieldResult{}
	s.written = map[string]bool{}
	s.refreshKeyLocked(s.ctx, false)

	s.publishLocked(EventFresh, map[string]any{"key": s.key})
}

// DismissPrompt hides the prompt without resuming or discarding anything.
func (s *Session) DismissPrompt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.prompt.Visible {
		return
	}
	s.prompt.Visible = false
	s.publishLocked(EventPrompt, map[string]any{"kind": string(s.prompt.Kind), "visible": false})
}

func (s *Session) dropFromPromptLocked(key string) {
	crashes := s.prompt.Crashes[:0:0]
	for _, c := range s.prompt.Crashes {
		if c.Key != key {
			crashes = append(crashes, c)
		}
	}
	drafts := s.prompt.Drafts[:0:0]
	for _, d := range s.prompt.Drafts {
		if d.Key != key {
			drafts = append(drafts, d)
		}
	}
	s.prompt.Crashes = crashes
	s.prompt.Drafts = drafts
}

func crashKeys(cs []CrashCandidate) []string {
	keys := make([]string, len(cs))
	for i, c := range cs {
		keys[i] = c.Key
	}
	return keys
}

func clampStep(step int) int {
	if step < 1 {
		return 1
	}
	if step > form.StepCount {
		return form.StepCount
	}
	return step
}
