package dali

import "crypto/rand"

// CryptoRandom is a gear.RandomSource backed by crypto/rand. Every gear on
// a bus must draw independently, so a shared seed is not an option.
type CryptoRandom struct{}

// RandomByte implements gear.RandomSource.
func (CryptoRandom) RandomByte() byte {
	var b [1]byte
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(b[:])
	return b[0]
}
