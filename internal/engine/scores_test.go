package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/draftkeep/internal/form"
)

func TestScores_Recompute(t *testing.T) {
	sub := form.Empty(testPeriod)
	sub.Tasks.Count = 4

	next, changed := NewScores(&taskScorer{}).Recompute(sub)
	assert.True(t, changed)
	assert.Equal(t, 4.0, next.Scores.Overall)

	sub.Derived = next
	_, changed = NewScores(&taskScorer{}).Recompute(sub)
	assert.False(t, changed)

	var none *Scores
	same, changed := none.Recompute(sub)
	assert.False(t, changed)
	assert.Equal(t, sub.Derived, same)
}

func TestSession_ScoresMergedAfterDebounce(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sc := &taskScorer{}
	s := f.session(t, WithScorer(sc))
	events := s.Subscribe(ctx, 256)

	require.NoError(t, s.Mutate(ctx, form.PathName, "Jo"))
	assert.Zero(t, sc.calls, "identity edits other than department are not scored")

	for _, n := range []int{1, 2, 3} {
		require.NoError(t, s.Mutate(ctx, form.PathTaskCount, n))
		f.clock.Advance(100 * time.Millisecond)
	}
	f.clock.Advance(500 * time.Millisecond)

	assert.Equal(t, 1, sc.calls)
	assert.Equal(t, 3.0, s.Submission().Derived.Scores.Overall)
	assert.True(t, s.HasUnsavedChanges())
	assert.Equal(t, 1, countType(drain(events), EventScored))

	// Same inputs, same scores: no event.
	require.NoError(t, s.Mutate(ctx, form.PathTaskCount, 3))
	f.clock.Advance(500 * time.Millisecond)
	assert.Equal(t, 2, sc.calls)
	assert.Zero(t, countType(drain(events), EventScored))

	f.clock.Advance(2 * time.Second)
	rec := f.record(t, s.Key())
	require.NotNil(t, rec)
	assert.Equal(t, 3.0, rec.Submission.Derived.Scores.Overall)
}

func TestSession_CelebrateOnUpwardCrossing(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := f.session(t, WithScorer(&taskScorer{}))
	events := s.Subscribe(ctx, 256)

	require.NoError(t, s.Mutate(ctx, form.PathTaskCount, 9))
	f.clock.Advance(500 * time.Millisecond)
	assert.True(t, s.Celebrating())

	f.clock.Advance(3 * time.Second)
	assert.False(t, s.Celebrating())
	assert.Equal(t, 2, countType(drain(events), EventCelebrate))

	// Staying above the threshold does not celebrate again.
	require.NoError(t, s.Mutate(ctx, form.PathTaskCount, 10))
	f.clock.Advance(500 * time.Millisecond)
	assert.False(t, s.Celebrating())
}
