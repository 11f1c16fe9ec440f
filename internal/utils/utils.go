package utils

import (
	"math"
	"math/rand"
	"time"
)

// NewRand returns a random source seeded with seed, or with the current time
// when seed is zero.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FirstDuplicate returns the first string that occurs twice in input.
func FirstDuplicate(input []string) (string, bool) {
	seen := make(map[string]struct{}, len(input))
	for _, val := range input {
		if _, ok := seen[val]; ok {
			return val, true
		}
		seen[val] = struct{}{}
	}
	return "", false
}
