// Package uuid mints identifiers for fetch events.
package uuid

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/JakeFAU/product-copy/internal/product"
)

var _ product.IDGenerator = Generator{}

// Generator creates UUID v7 strings, which sort by creation time.
type Generator struct{}

// NewGenerator creates a new Generator.
func NewGenerator() Generator {
	return Generator{}
}

// NewID returns a UUID7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}
