package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// undeletableStore fails every Delete.
type undeletableStore struct {
	*flakyStore
}

func (s *undeletableStore) Delete(ctx context.Context, key string) error {
	return errors.New("read-only")
}

func newTestMigrator(st DraftStore, now time.Time) (*Migrator, *Metrics) {
	m := NewMetrics(nil)
	return NewMigrator(st, func() time.Time { return now }, nil, m), m
}

func TestMigrate_MovesRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from, to := "draft:2026-09:jo:new", "draft:2026-09:jo:9876543210"
	rec := significantRecord("Jo", "", epoch, "tab-1")
	f.put(t, from, rec)

	mig, m := newTestMigrator(f.st, epoch.Add(time.Minute))
	outcome, err := mig.Migrate(ctx, from, to, rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMigrated, outcome)

	assert.Nil(t, f.record(t, from))
	moved := f.record(t, to)
	require.NotNil(t, moved)
	assert.True(t, moved.Migrated)
	assert.Equal(t, epoch.Add(time.Minute), moved.LastSaved)
	assert.Equal(t, rec.Submission, moved.Submission)
	assert.False(t, rec.Migrated, "input record is not modified")
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.migrations.WithLabelValues("migrated")))
}

func TestMigrate_SecondRunIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from, to := "draft:2026-09:jo:new", "draft:2026-09:jo:9876543210"
	f.put(t, from, significantRecord("Jo", "", epoch, "tab-1"))

	mig, _ := newTestMigrator(f.st, epoch.Add(time.Minute))
	first := mig.MigrateLegacy(ctx, []string{to, from})
	require.Len(t, first, 1)
	assert.Equal(t, OutcomeMigrated, first[0].Outcome)
	v := f.version(t, to)

	second := mig.MigrateLegacy(ctx, []string{to, from})
	assert.Empty(t, second)
	assert.Equal(t, v, f.version(t, to))

	outcome, err := mig.Migrate(ctx, from, to, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, outcome)

	outcome, err = mig.Migrate(ctx, to, to, f.record(t, to))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, outcome)
}

func TestMigrate_NewerCanonicalWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from, to := "draft:2026-09:jo:new", "draft:2026-09:jo:9876543210"

	legacy := significantRecord("Jo", "", epoch, "tab-1")
	canonical := significantRecord("Jo", "9876543210", epoch.Add(time.Hour), "tab-2")
	canonical.Submission.Tasks.Count = 42
	f.put(t, from, legacy)
	f.put(t, to, canonical)

	mig, _ := newTestMigrator(f.st, epoch.Add(2*time.Hour))
	outcome, err := mig.Migrate(ctx, from, to, legacy)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDiscarded, outcome)

	assert.Nil(t, f.record(t, from))
	kept := f.record(t, to)
	require.NotNil(t, kept)
	assert.Equal(t, 42, kept.Submission.Tasks.Count)
	assert.False(t, kept.Migrated)
	assert.Equal(t, int64(1), f.version(t, to))
}

func TestMigrate_OlderCanonicalIsReplaced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from, to := "draft:2026-09:jo:new", "draft:2026-09:jo:9876543210"

	legacy := significantRecord("Jo", "", epoch.Add(time.Hour), "tab-1")
	f.put(t, from, legacy)
	f.put(t, to, significantRecord("Jo", "9876543210", epoch, "tab-0"))

	mig, _ := newTestMigrator(f.st, epoch.Add(2*time.Hour))
	outcome, err := mig.Migrate(ctx, from, to, legacy)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMigrated, outcome)
	assert.Equal(t, "tab-1", f.record(t, to).Session.SessionID)
}

func TestMigrate_DeleteFailureKeepsNewCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from, to := "draft:2026-09:jo:new", "draft:2026-09:jo:9876543210"
	rec := significantRecord("Jo", "", epoch, "tab-1")
	f.put(t, from, rec)

	st := &undeletableStore{flakyStore: &flakyStore{Store: f.raw}}
	mig, _ := newTestMigrator(st, epoch.Add(time.Minute))
	outcome, err := mig.Migrate(ctx, from, to, rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMigrated, outcome)

	assert.NotNil(t, f.record(t, from))
	assert.NotNil(t, f.record(t, to))
}

func TestMigrate_WriteFailureKeepsLegacy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	from, to := "draft:2026-09:jo:new", "draft:2026-09:jo:9876543210"
	rec := significantRecord("Jo", "", epoch, "tab-1")
	f.put(t, from, rec)

	mig, m := newTestMigrator(&flakyStore{Store: f.raw, failSet: true}, epoch)
	outcome, err := mig.Migrate(ctx, from, to, rec)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, OutcomeFailed, outcome)

	assert.NotNil(t, f.record(t, from))
	assert.Nil(t, f.record(t, to))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.migrations.WithLabelValues("failed")))
}
