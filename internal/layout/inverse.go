package layout

import "math"

// Inverse returns floor((2^32-1)/p)+1, the exact reciprocal used for primes below 128K.
func Inverse(p uint32) uint32 { return math.MaxUint32/p + 1 }

// SloppyInverse returns floor(2^32/p - 0.5), the reduced precision reciprocal
// used for primes above 128K.
func SloppyInverse(p uint32) uint32 {
	return uint32(math.Floor(4294967296.0/float64(p) - 0.5))
}
