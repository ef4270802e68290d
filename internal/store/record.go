package store

import (
	"time"

	"github.com/roach88/draftkeep/internal/form"
)

// SessionInfo identifies the editing session that wrote a record.
type SessionInfo struct {
	SessionID string    `json:"sessionId"`
	Client    string    `json:"client,omitempty"`
	Host      string    `json:"host,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Record is one persisted draft. Writes always replace the whole record.
type Record struct {
	Submission    form.Submission `json:"submission"`
	CurrentStep   int             `json:"currentStep"`
	LastSaved     time.Time       `json:"lastSaved"`
	Session       SessionInfo     `json:"sessionInfo"`
	EmergencySave bool            `json:"emergencySave,omitempty"`
	Migrated      bool            `json:"migrated,omitempty"`

	// Legacy is set on records read back from a minimal fallback write. It
	// is never stored inside the record itself.
	Legacy bool `json:"-"`
}

// IndexEntry is the draft index row for one key.
type IndexEntry struct {
	Key       string
	Period    string
	LastSaved time.Time
	Version   int64
	Emergency bool
	Legacy    bool
}
