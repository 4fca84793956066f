package xid

import (
	"github.com/google/uuid"
)

// New returns a random (v4) identifier in canonical text form. Every table
// uses these as primary keys so ids can be minted before the row is written.
func New() string {
	return uuid.NewString()
}

func Valid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
