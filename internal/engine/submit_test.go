package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/draftkeep/internal/form"
	"github.com/roach88/draftkeep/internal/identity"
)

func fillCritical(t *testing.T, s *Session) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.ConfirmIdentity(ctx, identity.Confirmed{Name: "Priya Nair", Phone: "9876543210"}))
	require.NoError(t, s.Mutate(ctx, form.PathRoles, []string{"Developer"}))
	require.NoError(t, s.Mutate(ctx, form.PathWFO, 12.0))
}

func TestSubmit_CriticalValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	backend := &stubBackend{}
	s := f.session(t, WithBackend(backend))

	require.NoError(t, s.Mutate(ctx, form.PathName, "Priya"))
	require.NoError(t, s.Mutate(ctx, form.PathPhone, "98765"))
	require.NoError(t, s.Mutate(ctx, form.PathPeriod, "September"))

	_, err := s.Submit(ctx)
	require.Error(t, err)
	assert.True(t, IsCriticalValidation(err))
	assert.False(t, IsBackendFailure(err))

	var se *SubmitError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, form.StepProfile, se.Step)
	assert.Contains(t, se.Message, "Phone")
	assert.Contains(t, se.Fields, form.PathPhone)
	assert.Contains(t, se.Fields, form.PathRoles)
	assert.Contains(t, se.Fields, form.PathPeriod)
	assert.NotContains(t, se.Fields, form.PathName)
	assert.Empty(t, backend.subs)

	// Editing continues after a refused submit.
	require.NoError(t, s.Mutate(ctx, form.PathPhone, "987654"))
}

func TestSubmit_DefaultsPeriod(t *testing.T) {
	f := newFixture(t)
	backend := &stubBackend{}
	s := f.session(t, WithBackend(backend))
	fillCritical(t, s)

	_, err := s.Submit(context.Background())
	require.NoError(t, err)
	require.Len(t, backend.subs, 1)
	assert.Equal(t, testPeriod, backend.subs[0].Period)
}

func TestSubmit_BackendFailureKeepsBackup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	backend := &stubBackend{err: errors.New("503 service unavailable")}
	s := f.session(t, WithBackend(backend))
	fillCritical(t, s)

	_, err := s.Submit(ctx)
	require.Error(t, err)
	assert.True(t, IsBackendFailure(err))

	var se *SubmitError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, s.Key(), se.BackupKey)
	assert.ErrorIs(t, err, backend.err)

	rec := f.record(t, se.BackupKey)
	require.NotNil(t, rec)
	assert.Equal(t, 12.0, rec.Submission.Attendance.WFO)
	assert.True(t, rec.Submission.IsDraft)
	assert.False(t, s.HasUnsavedChanges())

	// Retry succeeds once the backend recovers.
	backend.err = nil
	_, err = s.Submit(ctx)
	require.NoError(t, err)
}

func TestSubmit_NoBackend(t *testing.T) {
	f := newFixture(t)
	s := f.session(t)
	fillCritical(t, s)

	_, err := s.Submit(context.Background())
	require.True(t, IsBackendFailure(err))
	assert.NotNil(t, f.record(t, s.Key()))
}

func TestSubmit_SuccessClearsDraft(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backend := &stubBackend{}
	s := f.session(t, WithBackend(backend))
	events := s.Subscribe(ctx, 256)
	fillCritical(t, s)
	key := s.Key()

	saved, err := s.Submit(ctx)
	require.NoError(t, err)
	assert.False(t, saved.IsDraft)
	require.Len(t, backend.subs, 1)
	assert.False(t, backend.subs[0].IsDraft)

	assert.Nil(t, f.record(t, key))
	at, ok, err := f.raw.SubmittedAt(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, epoch, at)

	sub := s.Submission()
	assert.False(t, sub.IsDraft)
	require.NotNil(t, sub.SubmittedAt)
	assert.False(t, s.HasUnsavedChanges())
	assert.Equal(t, 1, countType(drain(events), EventSubmitted))

	// Pending saves were cancelled; nothing resurrects the draft.
	f.clock.Advance(5 * time.Second)
	assert.Nil(t, f.record(t, key))

	found, err := NewDetector(f.st, 0, f.clock.Now, nil).ScanForCrashes(ctx)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestSubmit_SendsCurrentScores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	backend := &stubBackend{}
	sc := &taskScorer{}
	s := f.session(t, WithBackend(backend), WithScorer(sc))
	fillCritical(t, s)

	// Submitted before the score debounce fires.
	require.NoError(t, s.Mutate(ctx, form.PathTaskCount, 7))
	_, err := s.Submit(ctx)
	require.NoError(t, err)

	require.Len(t, backend.subs, 1)
	assert.Equal(t, 7.0, backend.subs[0].Derived.Scores.Overall)
	assert.Equal(t, 7.0, s.Submission().Derived.Scores.Overall)

	calls := sc.calls
	f.clock.Advance(5 * time.Second)
	assert.Equal(t, calls, sc.calls, "the pending score run was cancelled")
}

func TestSubmit_BackupScoresMatchAnswers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	backend := &stubBackend{err: errors.New("timeout")}
	s := f.session(t, WithBackend(backend), WithScorer(&taskScorer{}))
	fillCritical(t, s)

	require.NoError(t, s.Mutate(ctx, form.PathTaskCount, 4))
	_, err := s.Submit(ctx)
	require.True(t, IsBackendFailure(err))

	var se *SubmitError
	require.True(t, errors.As(err, &se))
	rec := f.record(t, se.BackupKey)
	require.NotNil(t, rec)
	assert.Equal(t, 4.0, rec.Submission.Derived.Scores.Overall)
}

func TestSubmit_FailedBackupIsNotClaimed(t *testing.T) {
	f := newFixture(t)
	f.st = &flakyStore{Store: f.raw, failSet: true, failLegacy: true}
	ctx := context.Background()
	backend := &stubBackend{err: errors.New("503 service unavailable")}
	s := f.session(t, WithBackend(backend))
	fillCritical(t, s)
	key := s.Key()

	_, err := s.Submit(ctx)
	require.True(t, IsBackendFailure(err))

	var se *SubmitError
	require.True(t, errors.As(err, &se))
	assert.Empty(t, se.BackupKey)
	assert.NotContains(t, se.Message, "your draft is saved locally")
	assert.Contains(t, se.Message, "could not be saved locally")
	assert.Nil(t, f.record(t, key))
	assert.True(t, s.HasUnsavedChanges())

	// The backend is still tried; a recovered backend takes the submission.
	backend.err = nil
	_, err = s.Submit(ctx)
	require.NoError(t, err)
	require.Len(t, backend.subs, 1)
}

func TestSubmit_NoBackendFailedBackup(t *testing.T) {
	f := newFixture(t)
	f.st = &flakyStore{Store: f.raw, failSet: true, failLegacy: true}
	s := f.session(t)
	fillCritical(t, s)

	_, err := s.Submit(context.Background())
	require.True(t, IsBackendFailure(err))

	var se *SubmitError
	require.True(t, errors.As(err, &se))
	assert.Empty(t, se.BackupKey)
	assert.Contains(t, se.Message, "could not be saved locally")
}
