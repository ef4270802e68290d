package engine

import "github.com/google/uuid"

// UUIDv7Generator issues session IDs that sort by creation time, so two
// tabs' records of the same draft order by when their sessions began.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7. It panics only if the system
// random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
