// Package sha256 fingerprints extracted product text.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/JakeFAU/product-copy/internal/product"
)

var _ product.Hasher = (*Hasher)(nil)

// Hasher produces hex SHA-256 digests.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	return h.Text(string(data)), nil
}

// Text returns the hex digest of s. Consumers of fetch events compare it
// against earlier digests of the same URL to notice page changes.
func (*Hasher) Text(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
