package producer

import "github.com/google/uuid"

// EpochGenerator produces the identifier stamped on queued operations.
type EpochGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 epochs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
