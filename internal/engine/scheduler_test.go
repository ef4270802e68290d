package engine

import (
	"context"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/draftkeep/internal/form"
)

func TestDebouncedWrite_BurstProducesOneWrite(t *testing.T) {
	f := newFixture(t)
	s := f.session(t)
	ctx := context.Background()
	events := s.Subscribe(ctx, 256)

	require.NoError(t, s.Mutate(ctx, form.PathName, "Jo"))
	for i := 1; i <= 5; i++ {
		f.clock.Advance(300 * time.Millisecond)
		require.NoError(t, s.Mutate(ctx, form.PathTaskCount, i))
	}
	assert.True(t, s.HasUnsavedChanges())
	assert.Zero(t, f.version(t, s.Key()))

	f.clock.Advance(2 * time.Second)

	assert.Equal(t, int64(1), f.version(t, "draft:2026-09:jo:new"))
	assert.Equal(t, 1, countType(drain(events), EventSaved))
	assert.False(t, s.HasUnsavedChanges())
	assert.Equal(t, epoch.Add(1500*time.Millisecond+2*time.Second), s.LastSaved())

	rec := f.record(t, s.Key())
	require.NotNil(t, rec)
	assert.Equal(t, 5, rec.Submission.Tasks.Count)
	assert.Equal(t, "tab-1", rec.Session.SessionID)
	assert.False(t, rec.EmergencySave)
}

func TestDebouncedWrite_SpacedEditsEachWrite(t *testing.T) {
	f := newFixture(t)
	s := f.session(t)
	ctx := context.Background()

	require.NoError(t, s.Mutate(ctx, form.PathName, "Jo"))
	f.clock.Advance(2100 * time.Millisecond)
	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Mutate(ctx, form.PathTaskCount, i))
		f.clock.Advance(2100 * time.Millisecond)
	}

	assert.Equal(t, int64(4), f.version(t, s.Key()))
}

func TestWrite_EmptySessionIsNeverPersisted(t *testing.T) {
	f := newFixture(t)
	s := f.session(t)
	ctx := context.Background()

	assert.False(t, s.SaveNow(ctx))

	require.NoError(t, s.Mutate(ctx, form.PathFbCompany, "great place"))
	f.clock.Advance(5 * time.Second)
	res := s.HandleUnload(ctx)

	assert.False(t, res.Saved)
	assert.False(t, res.WarnUnsaved)
	keys, err := f.raw.ListKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestWrite_PeriodAloneIsEnough(t *testing.T) {
	f := newFixture(t)
	s := f.session(t)
	ctx := context.Background()

	require.NoError(t, s.Mutate(ctx, form.PathPeriod, "2026-08"))
	assert.Equal(t, "draft:2026-08:anonymous:new", s.Key())
	assert.True(t, s.SaveNow(ctx))
	assert.NotNil(t, f.record(t, "draft:2026-08:anonymous:new"))
}

func TestForcedWrites_LaterWins(t *testing.T) {
	f := newFixture(t)
	s := f.session(t)
	ctx := context.Background()

	require.NoError(t, s.Mutate(ctx, form.PathName, "Jo"))
	assert.Equal(t, 3, s.GoToStep(ctx, 3))
	require.NoError(t, s.Mutate(ctx, form.PathFbHR, "late edit"))
	res := s.HandleUnload(ctx)
	assert.True(t, res.Saved)
	assert.False(t, res.WarnUnsaved)

	rec := f.record(t, s.Key())
	require.NotNil(t, rec)
	assert.Equal(t, "late edit", rec.Submission.Feedback.HR)
	assert.Equal(t, 3, rec.CurrentStep)
	assert.True(t, rec.EmergencySave)
	assert.Equal(t, int64(2), f.version(t, s.Key()))

	// The pending debounced save was superseded by the forced write.
	f.clock.Advance(5 * time.Second)
	assert.Equal(t, int64(2), f.version(t, s.Key()))
}

func TestHandleVisibilityHidden_Writes(t *testing.T) {
	f := newFixture(t)
	s := f.session(t)
	ctx := context.Background()

	require.NoError(t, s.Mutate(ctx, form.PathName, "Jo"))
	assert.True(t, s.HandleVisibilityHidden(ctx))
	assert.False(t, s.HasUnsavedChanges())
	assert.Equal(t, int64(1), f.version(t, s.Key()))
}

func TestWrite_FallsBackToLegacyFormat(t *testing.T) {
	f := newFixture(t)
	flaky := &flakyStore{Store: f.raw, failSet: true}
	f.st = flaky
	m := NewMetrics(nil)
	s := f.session(t, WithMetrics(m))
	ctx := context.Background()

	require.NoError(t, s.Mutate(ctx, form.PathName, "Jo"))
	require.Equal(t, 2, s.GoToStep(ctx, 2))

	rec := f.record(t, s.Key())
	require.NotNil(t, rec)
	assert.True(t, rec.Legacy)
	assert.Equal(t, 2, rec.CurrentStep)
	assert.Equal(t, "Jo", rec.Submission.Identity.Name)
	assert.False(t, s.HasUnsavedChanges())
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.writes.WithLabelValues("navigation", "fallback")))
}

func TestHandleUnload_WarnsWhenWriteFails(t *testing.T) {
	f := newFixture(t)
	f.st = &flakyStore{Store: f.raw, failSet: true, failLegacy: true}
	m := NewMetrics(nil)
	s := f.session(t, WithMetrics(m))
	ctx := context.Background()

	require.NoError(t, s.Mutate(ctx, form.PathName, "Jo"))
	res := s.HandleUnload(ctx)

	assert.False(t, res.Saved)
	assert.True(t, res.WarnUnsaved)
	assert.True(t, s.HasUnsavedChanges())
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.writes.WithLabelValues("emergency", "failed")))
}

func TestWrite_OverwritesForeignSessionDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := "draft:2026-09:jo:9876543210"
	f.put(t, key, significantRecord("Jo", "9876543210", epoch.Add(time.Minute), "other-tab"))

	s := f.session(t)
	require.NoError(t, s.Mutate(ctx, form.PathName, "Jo"))
	require.NoError(t, s.Mutate(ctx, form.PathPhone, "9876543210"))
	require.Equal(t, key, s.Key())

	assert.True(t, s.SaveNow(ctx))
	rec := f.record(t, key)
	require.NotNil(t, rec)
	assert.Equal(t, "tab-1", rec.Session.SessionID)
}

func TestGoToStep_NeverBlocked(t *testing.T) {
	f := newFixture(t)
	always := stepValidatorFunc(func(step int, sub form.Submission) ([]string, []string) {
		return []string{"Phone number incomplete (3/10 digits)", "Work from office days exceed working days"}, nil
	})
	s := f.session(t, WithStepValidator(always))
	ctx := context.Background()

	require.NoError(t, s.Mutate(ctx, form.PathPhone, "987"))
	f.clock.Advance(500 * time.Millisecond)
	require.True(t, s.Validation().HasErrors())

	assert.Equal(t, 2, s.GoToStep(ctx, 2))
	assert.Equal(t, 2, s.Step())
	f.clock.Advance(500 * time.Millisecond)

	res := s.Validation()
	assert.Equal(t, 2, res.Step)
	assert.Contains(t, res.Errors, form.PathPhone)
	assert.Contains(t, res.Errors, form.PathWFO)

	assert.Equal(t, 3, s.GoToStep(ctx, 3))
	assert.Equal(t, form.StepCount, s.GoToStep(ctx, 99))
	assert.Equal(t, 1, s.GoToStep(ctx, 0))
}

func TestFieldValidation_SeparateFromStepResult(t *testing.T) {
	f := newFixture(t)
	fields := fieldValidatorFunc(func(p form.Path, v any, sub form.Submission) (string, string) {
		if p == form.PathPhone && len(v.(string)) != 10 {
			return "Phone number incomplete", ""
		}
		return "", ""
	})
	steps := stepValidatorFunc(func(step int, sub form.Submission) ([]string, []string) {
		return nil, []string{"Name contains unusual characters"}
	})
	s := f.session(t, WithFieldValidator(fields), WithStepValidator(steps))
	ctx := context.Background()

	require.NoError(t, s.Mutate(ctx, form.PathPhone, "98"))
	assert.Equal(t, "Phone number incomplete", s.FieldValidation()[form.PathPhone].Error)
	assert.Empty(t, s.Validation().Warnings)

	f.clock.Advance(500 * time.Millisecond)
	assert.Contains(t, s.Validation().Warnings, form.PathName)
	assert.Contains(t, s.FieldValidation(), form.PathPhone)

	require.NoError(t, s.Mutate(ctx, form.PathPhone, "9876543210"))
	assert.NotContains(t, s.FieldValidation(), form.PathPhone)

	res := s.ValidateField(form.PathPhone, "1")
	assert.NotEmpty(t, res.Error)
}

func TestMutate_RejectsUnknownPath(t *testing.T) {
	f := newFixture(t)
	s := f.session(t)

	err := s.Mutate(context.Background(), "identity.nickname", "x")
	assert.ErrorIs(t, err, form.ErrUnknownPath)
	assert.False(t, s.HasUnsavedChanges())
}

func TestClose_DropsPendingWork(t *testing.T) {
	f := newFixture(t)
	s := f.session(t)
	ctx := context.Background()

	require.NoError(t, s.Mutate(ctx, form.PathName, "Jo"))
	s.Close()
	f.clock.Advance(time.Minute)

	assert.Zero(t, f.version(t, "draft:2026-09:jo:new"))
	assert.ErrorIs(t, s.Mutate(ctx, form.PathName, "Joe"), ErrSessionClosed)
}

// fieldValidatorFunc adapts a function to FieldValidator.
type fieldValidatorFunc func(p form.Path, v any, sub form.Submission) (string, string)

func (f fieldValidatorFunc) ValidateField(p form.Path, v any, sub form.Submission) (string, string) {
	return f(p, v, sub)
}
