package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/draftkeep/internal/form"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testEpoch = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

// createTestRecord returns a populated record saved at testEpoch+offset.
func createTestRecord(name, phone string, offset time.Duration) *Record {
	sub := form.Empty("2026-09")
	sub.Identity.Name = name
	sub.Identity.Phone = phone
	sub.Identity.Roles = []string{"Developer"}
	sub.Attendance.WFO = 18
	sub.Learning = []form.LearningEntry{{Title: "Go concurrency", DurationMins: 120}}
	return &Record{
		Submission:  sub,
		CurrentStep: 2,
		LastSaved:   testEpoch.Add(offset),
		Session: SessionInfo{
			SessionID: "session-1",
			Client:    "draftkeep-test",
			Timestamp: testEpoch.Add(offset),
		},
	}
}
