// Package system provides the wall clock used outside tests.
package system

import (
	"time"

	"github.com/JakeFAU/product-copy/internal/product"
)

var _ product.Clock = Clock{}

// Clock implements product.Clock using time.Now in UTC, so cache timestamps
// written by different hosts compare consistently.
type Clock struct{}

// New creates a new Clock.
func New() Clock {
	return Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
