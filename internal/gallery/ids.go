package gallery

import (
	"github.com/google/uuid"
)

// IDGenerator issues store keys for new images.
type IDGenerator interface {
	NewID() (string, error)
}

// UUIDGenerator issues UUIDv7 strings. They embed a millisecond timestamp
// followed by a per-process monotonic sequence and random bits, so ids are
// unique under any batch rate and sort lexically in creation order.
type UUIDGenerator struct{}

// NewID returns a new UUIDv7 in canonical lowercase form.
func (UUIDGenerator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
