package utils

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// NewCID returns a unique connection id.
func NewCID() string {
	return uuid.NewString()
}

// RandomColor picks a display color for a new connection. Values stay
// below 200 per channel so nicknames remain readable on light themes.
func RandomColor() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", rand.Intn(200), rand.Intn(200), rand.Intn(200))
}
