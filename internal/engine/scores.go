package engine

import (
	"reflect"

	"github.com/roach88/draftkeep/internal/form"
)

// Scores recomputes the derived block through a Scorer.
type Scores struct {
	scorer Scorer
}

// NewScores wraps sc.
func NewScores(sc Scorer) *Scores {
	return &Scores{scorer: sc}
}

// Recompute returns the derived block for sub and whether it differs from
// the one sub already carries.
func (p *Scores) Recompute(sub form.Submission) (form.Derived, bool) {
	if p == nil || p.scorer == nil {
		return sub.Derived, false
	}
	next := p.scorer.Score(sub)
	return next, !reflect.DeepEqual(next, sub.Derived)
}

func (s *Session) onScoreTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	before := s.sub.Derived.Scores.Overall
	if !s.rescoreLocked() {
		return
	}
	s.saveT.Trigger(s.onSaveTimer)

	next := s.sub.Derived
	threshold := s.settings.CelebrateAt
	if threshold > 0 && before < threshold && next.Scores.Overall >= threshold {
		s.celebrating = true
		s.publishLocked(EventCelebrate, map[string]any{"on": true})
		s.celebrateT.Trigger(s.onCelebrateTimer)
	}
}

func (s *Session) onCelebrateTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.celebrating {
		return
	}
	s.celebrating = false
	if !s.closed {
		s.publishLocked(EventCelebrate, map[string]any{"on": false})
	}
}

// rescoreLocked runs the scorer now and merges a changed result into the
// submission, marking it unsaved. It reports whether anything changed.
func (s *Session) rescoreLocked() bool {
	s.metrics.recompute("score")
	next, changed := NewScores(s.scorer).Recompute(s.sub)
	if !changed {
		return false
	}
	s.sub.Derived = next
	s.unsaved = true
	s.publishLocked(EventScored, map[string]any{
		"overall": next.Scores.Overall,
	})
	return true
}
