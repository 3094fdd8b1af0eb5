package simbus

import "math/rand/v2"

// SeededRandom is a reproducible gear.RandomSource.
type SeededRandom struct {
	r *rand.Rand
}

// NewSeededRandom returns a random source seeded with (seed, stream).
// Gears on one bus must use different streams.
func NewSeededRandom(seed, stream uint64) *SeededRandom {
	return &SeededRandom{r: rand.New(rand.NewPCG(seed, stream))}
}

// RandomByte implements gear.RandomSource.
func (s *SeededRandom) RandomByte() byte {
	return byte(s.r.UintN(256))
}
