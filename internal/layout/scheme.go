package layout

import "fmt"

const (
	// LaneWidth is the number of lanes in one dispatched group.
	LaneWidth = 256
	// BlockSizeBytes is the shared-memory sieve block of one group.
	BlockSizeBytes = 8192
	// BlockSizeBits is the number of sieve bits produced by one group.
	BlockSizeBits = BlockSizeBytes * 8
	// MaxRowsPerThread is the capacity of each row descriptor column.
	MaxRowsPerThread = 4224
	// MaxSievePrimes is the largest budget whose primes stay below 2^24.
	MaxSievePrimes = 1075000

	prefixPadBytes = 1024

	primesBelow64K  = 6542
	primesBelow128K = 12251
	primesBelow1M   = 82025

	// crossover1MAdjust is subtracted from the 1M crossover row. The device
	// kernel's row consumption depends on it.
	// TODO: verify against the segment kernel's 1M row loop.
	crossover1MAdjust = 3
)

// Scheme selects how many tiny primes are excluded from sieving and how many
// are handled by inline kernel code instead of packed data.
type Scheme struct {
	NotSieved int `json:"not_sieved"`
	Inline    int `json:"inline"`
}

var (
	// SchemeDefault excludes 2, 3, 5, 7 and handles 11 through 251 inline.
	SchemeDefault = Scheme{NotSieved: 4, Inline: 50}
	// SchemeMoreClasses excludes 2 through 11 and handles 13 through 251 inline.
	SchemeMoreClasses = Scheme{NotSieved: 5, Inline: 49}
)

// SchemeFor returns the scheme matching the class layout of the factoring run.
func SchemeFor(moreClasses bool) Scheme {
	if moreClasses {
		return SchemeMoreClasses
	}
	return SchemeDefault
}

// Prefix is the number of leading primes that never appear in primeInfo.
func (s Scheme) Prefix() int { return s.NotSieved + s.Inline }

// Validate rejects anything other than the two supported schemes.
func (s Scheme) Validate() error {
	if s != SchemeDefault && s != SchemeMoreClasses {
		return fmt.Errorf("layout: unsupported scheme %d not sieved / %d inline", s.NotSieved, s.Inline)
	}
	return nil
}

// Crossovers holds the row indices where the packed format changes.
type Crossovers struct {
	Below64K  int `json:"below_64k"`
	Below128K int `json:"below_128k"`
	Below1M   int `json:"below_1m"`
}

// Crossovers returns the number of rows holding primes below 64K, 128K and 1M.
func (s Scheme) Crossovers() Crossovers {
	p := s.Prefix()
	return Crossovers{
		Below64K:  (primesBelow64K - p) / LaneWidth,
		Below128K: (primesBelow128K - p) / LaneWidth,
		Below1M:   (primesBelow1M-p)/LaneWidth - crossover1MAdjust,
	}
}
