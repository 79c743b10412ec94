package pool_test

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"news-digest-api/api/pool"
)

func TestShuffleIsPermutation(t *testing.T) {
	t.Parallel()

	creds := []string{"k1", "k2", "k3", "k4", "k5"}
	orig := slices.Clone(creds)
	s := pool.NewWithSource(rand.NewPCG(1, 2))

	for range 50 {
		got := s.Shuffle(creds)
		assert.ElementsMatch(t, creds, got)
	}
	assert.Equal(t, orig, creds, "input must not be mutated")
}

func TestShuffleSpreadsHead(t *testing.T) {
	t.Parallel()

	creds := []string{"a", "b", "c"}
	s := pool.NewWithSource(rand.NewPCG(42, 7))

	heads := map[string]int{}
	for range 3000 {
		heads[s.Shuffle(creds)[0]]++
	}
	for _, c := range creds {
		assert.InDelta(t, 1000, heads[c], 150, "head count for %s", c)
	}
}

func TestShuffleEdgeSizes(t *testing.T) {
	t.Parallel()

	s := pool.New()
	assert.Empty(t, s.Shuffle(nil))
	assert.Equal(t, []string{"only"}, s.Shuffle([]string{"only"}))
}

func TestMask(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "…wxyz", pool.Mask("AIzaSy-secret-wxyz"))
	assert.Equal(t, "…", pool.Mask("abc"))
}
