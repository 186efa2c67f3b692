// Package primes generates the seed primes used by the GPU sieve.
package primes

import (
	"errors"
	"fmt"
	"math"
)

// rangeFactor is how far past count we sieve: the first N primes lie below 40*N
// for every budget the sieve accepts.
const rangeFactor = 40

// maxCount keeps the odd-only flag array addressable with uint32 indices.
const maxCount = math.MaxUint32 / rangeFactor

// ErrAllocation reports that the flag array for the requested count cannot be
// allocated. Callers cannot proceed without primes.
var ErrAllocation = errors.New("primes: cannot allocate sieve flags")

// Generate returns the first count primes in ascending order, starting at 2.
func Generate(count int) ([]uint32, error) {
	if count <= 0 {
		return nil, fmt.Errorf("primes: count must be positive, got %d", count)
	}
	if count > maxCount {
		return nil, fmt.Errorf("%w: count %d exceeds %d", ErrAllocation, count, maxCount)
	}

	// flags[i] stands for the odd number 2i+1
	size := count * rangeFactor / 2
	composite := make([]bool, size)

	out := make([]uint32, 0, count)
	out = append(out, 2)

	limit := int(math.Sqrt(float64(count * rangeFactor)))
	i := 1
	for ; i < limit && len(out) < count; i++ {
		if composite[i] {
			continue
		}
		p := 2*i + 1
		for j := i + p; j < size; j += p {
			composite[j] = true
		}
		out = append(out, uint32(p))
	}
	for ; len(out) < count; i++ {
		if i >= size {
			return nil, fmt.Errorf("%w: range %d holds fewer than %d primes", ErrAllocation, count*rangeFactor, count)
		}
		if !composite[i] {
			out = append(out, uint32(2*i+1))
		}
	}
	return out, nil
}
