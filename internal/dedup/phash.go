// Package dedup implements near-duplicate detection for candidate images
// using a 64-bit perceptual hash and a sharded in-memory index.
package dedup

import (
	"fmt"
	"image"
	"math/bits"
	"strconv"

	"github.com/corona10/goimagehash"
)

// Compute returns the 64-bit perceptual hash of a decoded image.
func Compute(img image.Image) (uint64, error) {
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return 0, fmt.Errorf("perceptual hash: %w", err)
	}
	return h.GetHash(), nil
}

// Distance returns the Hamming distance between two hashes.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// HashHex formats a hash the way it is stored in the database.
func HashHex(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

// ParseHashHex parses a stored hash back to its numeric form.
func ParseHashHex(s string) (uint64, error) {
	h, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hash %q: %w", s, err)
	}
	return h, nil
}
