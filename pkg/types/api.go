package types

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: primes must be a positive integer
	Error string `json:"error" example:"primes must be a positive integer"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// PlanResponse describes a solved sieving-prime plan.
type PlanResponse struct {
	// Budget the plan was solved for.
	// example: 82486
	Requested int `json:"requested" example:"82486"`
	// Number of sieving primes actually used.
	// example: 82486
	PrimeCount int `json:"prime_count" example:"82486"`
	// Descriptor rows walked by every lane.
	// example: 322
	RowsPerThread int `json:"rows_per_thread" example:"322"`
	// Tiny primes excluded from sieving (4 or 5).
	// example: 4
	NotSieved int `json:"not_sieved" example:"4"`
	// Primes handled by inline kernel code (50 or 49).
	// example: 50
	Inline int `json:"inline" example:"50"`
	// Row crossovers where the packed format changes.
	Crossover64K  int `json:"crossover_64k" example:"25"`
	Crossover128K int `json:"crossover_128k" example:"47"`
	Crossover1M   int `json:"crossover_1m" example:"317"`
	// Grid steps taken by the crossover search.
	// example: 0
	Iterations int `json:"iterations" example:"0"`
	// Exact primeInfo stream size.
	// example: 364544
	PrimeInfoBytes int `json:"prime_info_bytes" example:"364544"`
	// Serialised row descriptor table size.
	RowTableBytes int `json:"row_table_bytes" example:"727472"`
}

// BandStatus summarises one band of the encoded stream.
type BandStatus struct {
	// example: delta_128k
	Name       string `json:"name" example:"delta_128k"`
	FirstRow   int    `json:"first_row"`
	Rows       int    `json:"rows"`
	ByteOffset int    `json:"byte_offset"`
	Bytes      int    `json:"bytes"`
	FirstPrime int    `json:"first_prime"`
	Primes     int    `json:"primes"`
	Stride     int    `json:"stride"`
}

// LayoutResponse is returned by GET /layout.
type LayoutResponse struct {
	Plan  PlanResponse `json:"plan"`
	Bands []BandStatus `json:"bands"`
}

// BufferStatus reports one allocated device buffer.
type BufferStatus struct {
	// example: bitmap
	Name  string `json:"name" example:"bitmap"`
	Bytes int    `json:"bytes" example:"8388608"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Unique id of this sieve instance.
	RunID string `json:"run_id"`
	// Whether one-time setup has completed.
	Initialized bool `json:"initialized"`
	// Raw benchmark mode leaves the bitmap all ones and skips kernels.
	RawBench bool `json:"raw_bench"`
	// Exponent whose modular inverses are currently on the device.
	LastExponent *uint32 `json:"last_exponent,omitempty"`
	// Requested sieving-prime budget.
	SievePrimes int `json:"sieve_primes"`
	// Bitmap capacity in bits.
	SieveSizeBits int `json:"sieve_size_bits"`
	// Present once initialized.
	Plan    *PlanResponse  `json:"plan,omitempty"`
	Buffers []BufferStatus `json:"buffers"`
}
