package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/draftkeep/internal/form"
	"github.com/roach88/draftkeep/internal/identity"
)

// EncodeRecord serializes a record for storage.
// HTML escaping is disabled so stored drafts stay readable in the CLI.
func EncodeRecord(rec *Record) ([]byte, error) {
	return encode(rec)
}

// EncodeLegacy serializes the bare submission written by SetLegacy.
func EncodeLegacy(sub form.Submission) ([]byte, error) {
	return encode(sub)
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodeRecord parses stored bytes. Legacy payloads hold only a submission;
// step and lastSaved come from the row and fill in the missing metadata.
// Unknown fields are ignored.
func DecodeRecord(data []byte, legacy bool, step int, lastSaved time.Time) (*Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("unmarshal record: empty payload")
	}
	if legacy {
		var sub form.Submission
		if err := json.Unmarshal(data, &sub); err != nil {
			return nil, fmt.Errorf("unmarshal legacy record: %w", err)
		}
		return &Record{
			Submission:  sub,
			CurrentStep: step,
			LastSaved:   lastSaved,
			Legacy:      true,
		}, nil
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// splitKey extracts the indexed columns from a draft key. Keys that do not
// follow the draft:<period>:<name>:<phone> shape are stored unindexed.
func splitKey(key string) (segment, phone, period string) {
	k, err := identity.Parse(key)
	if err != nil {
		return "", "", ""
	}
	return k.Segment(), k.Phone, k.Period
}
