// Package uid generates the opaque identifiers the engine hands out for
// objects and in-progress uploads.
package uid

import (
	"crypto/rand"
	"encoding/hex"
	"io"

	"github.com/google/uuid"
)

// NewObjectID returns a new internal object identifier, stable for the
// lifetime of the object and independent of its user-visible key.
func NewObjectID() string {
	return uuid.New().String()
}

// NewUploadID returns a new opaque upload identifier, unique process-wide
// for the lifetime of the process.
func NewUploadID() string {
	return uuid.New().String()
}

// Uid returns a unique id consisting of 32 bits from a cryptographically
// strong pseudo-random generator, rendered as 8 hex characters.
func Uid() string {
	id := make([]byte, 4)
	if _, err := io.ReadFull(rand.Reader, id); err != nil {
		panic(err)
	}
	return hex.EncodeToString(id)
}
