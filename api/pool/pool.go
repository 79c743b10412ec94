// Package pool permutes credential pools so load spreads across keys per request.
package pool

import (
	"math/rand/v2"
)

// Shuffler produces a fresh permutation of a pool on every call. The pool itself is never mutated.
type Shuffler struct {
	intN func(n int) int
}

// New returns a Shuffler backed by the global math/rand/v2 source.
func New() *Shuffler {
	return &Shuffler{intN: rand.IntN}
}

// NewWithSource is for deterministic permutations in tests.
func NewWithSource(src rand.Source) *Shuffler {
	r := rand.New(src)
	return &Shuffler{intN: r.IntN}
}

// Shuffle returns a Fisher-Yates permutation of creds.
func (s *Shuffler) Shuffle(creds []string) []string {
	out := make([]string, len(creds))
	copy(out, creds)
	for i := len(out) - 1; i > 0; i-- {
		j := s.intN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Mask hides all but the last four characters of a credential for logging.
func Mask(cred string) string {
	const visible = 4
	if len(cred) <= visible {
		return "…"
	}
	return "…" + cred[len(cred)-visible:]
}
