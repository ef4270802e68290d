package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/draftkeep/internal/form"
	"github.com/roach88/draftkeep/internal/store"
	"github.com/roach88/draftkeep/internal/testutil"
)

var epoch = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

const testPeriod = "2026-09"

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

type fixture struct {
	st    DraftStore
	raw   *store.Store
	clock *testutil.FakeClock
	ids   *testutil.SequentialIDs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	raw := openTestStore(t)
	return &fixture{
		st:    raw,
		raw:   raw,
		clock: testutil.NewFakeClock(epoch),
		ids:   testutil.NewSequentialIDs("tab"),
	}
}

func (f *fixture) session(t *testing.T, opts ...SessionOption) *Session {
	t.Helper()
	base := []SessionOption{
		WithClock(f.clock),
		WithIDGenerator(f.ids),
		WithClientInfo("test", "host"),
	}
	s := NewSession(f.st, append(base, opts...)...)
	t.Cleanup(s.Close)
	return s
}

// version returns the store version of key, 0 if absent.
func (f *fixture) version(t *testing.T, key string) int64 {
	t.Helper()
	index, err := f.raw.ListDrafts(context.Background())
	require.NoError(t, err)
	for _, e := range index {
		if e.Key == key {
			return e.Version
		}
	}
	return 0
}

func (f *fixture) record(t *testing.T, key string) *store.Record {
	t.Helper()
	rec, err := f.raw.Get(context.Background(), key)
	require.NoError(t, err)
	return rec
}

func (f *fixture) put(t *testing.T, key string, rec *store.Record) {
	t.Helper()
	require.NoError(t, f.raw.Set(context.Background(), key, rec))
}

// drain returns every event currently buffered on ch.
func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func countType(events []Event, typ string) int {
	n := 0
	for _, e := range events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func significantRecord(name, phone string, saved time.Time, sessionID string) *store.Record {
	sub := form.Empty(testPeriod)
	sub.Identity.Name = name
	sub.Identity.Phone = phone
	sub.Identity.Roles = []string{"Developer"}
	sub.Attendance.WFO = 15
	return &store.Record{
		Submission:  sub,
		CurrentStep: 3,
		LastSaved:   saved,
		Session:     store.SessionInfo{SessionID: sessionID, Timestamp: saved},
	}
}

// stepValidatorFunc adapts a function to StepValidator.
type stepValidatorFunc func(step int, sub form.Submission) ([]string, []string)

func (f stepValidatorFunc) ValidateStep(step int, sub form.Submission) ([]string, []string) {
	return f(step, sub)
}

// taskScorer scores overall as the task count.
type taskScorer struct {
	mu    sync.Mutex
	calls int
}

func (sc *taskScorer) Score(sub form.Submission) form.Derived {
	sc.mu.Lock()
	sc.calls++
	sc.mu.Unlock()
	return form.Derived{Scores: form.Scores{Overall: float64(sub.Tasks.Count)}}
}

// flakyStore fails primary writes while failSet is set, and legacy writes
// while failLegacy is set.
type flakyStore struct {
	*store.Store
	mu         sync.Mutex
	failSet    bool
	failLegacy bool
}

var errDiskFull = errors.New("disk full")

func (s *flakyStore) Set(ctx context.Context, key string, rec *store.Record) error {
	s.mu.Lock()
	fail := s.failSet
	s.mu.Unlock()
	if fail {
		return errDiskFull
	}
	return s.Store.Set(ctx, key, rec)
}

func (s *flakyStore) SetLegacy(ctx context.Context, key string, sub form.Submission, step int, at time.Time) error {
	s.mu.Lock()
	fail := s.failLegacy
	s.mu.Unlock()
	if fail {
		return errDiskFull
	}
	return s.Store.SetLegacy(ctx, key, sub, step, at)
}

// stubBackend records submissions and fails while err is set.
type stubBackend struct {
	err  error
	subs []form.Submission
}

func (b *stubBackend) Submit(ctx context.Context, sub form.Submission) (form.Submission, error) {
	if b.err != nil {
		return form.Submission{}, b.err
	}
	b.subs = append(b.subs, sub)
	return sub, nil
}
