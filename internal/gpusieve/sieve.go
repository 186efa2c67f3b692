package gpusieve

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gpusieve/internal/device"
	"gpusieve/internal/layout"
	"gpusieve/internal/primes"
	"gpusieve/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	DefaultSievePrimes   = 82486
	DefaultSieveSizeBits = 64 << 20
)

// Config encapsulates all tunables for Sieve construction.
type Config struct {
	// SievePrimes is the requested sieving-prime budget; Init rounds it to a plan.
	SievePrimes int
	// SieveSizeBits is the bitmap capacity; a multiple of layout.BlockSizeBits.
	SieveSizeBits int
	// Scheme selects the small-prime exclusion; zero means layout.SchemeDefault.
	Scheme layout.Scheme
	// RawBench fills the bitmap with ones and skips every kernel.
	RawBench bool

	Device    device.Device
	Kernels   device.Kernels
	Logger    *zerolog.Logger
	Publisher EventPublisher
	// Generate produces seed primes; defaults to primes.Generate.
	Generate func(count int) ([]uint32, error)
}

// Sieve is the per-run sieve context. initialized and lastExponent replace
// process-wide flags so that each instance memoises its own setup.
type Sieve struct {
	cfg       Config
	id        uuid.UUID
	log       zerolog.Logger
	publisher EventPublisher

	// mu guards the state below. Lifecycle calls hold it for writing across
	// the device work; status views hold it for reading.
	mu           sync.RWMutex
	initialized  bool
	lastExponent *uint32
	layout       *layout.Layout
	bufs         buffers
}

// New constructs a Sieve from cfg, applying defaults.
func New(cfg Config) (*Sieve, error) {
	if cfg.Device == nil || cfg.Kernels == nil {
		return nil, fmt.Errorf("gpusieve: device and kernels are required")
	}
	if cfg.SievePrimes <= 0 {
		cfg.SievePrimes = DefaultSievePrimes
	}
	if cfg.SieveSizeBits == 0 {
		cfg.SieveSizeBits = DefaultSieveSizeBits
	}
	if cfg.SieveSizeBits < 0 || cfg.SieveSizeBits%layout.BlockSizeBits != 0 {
		return nil, fmt.Errorf("gpusieve: sieve size %d bits is not a positive multiple of %d", cfg.SieveSizeBits, layout.BlockSizeBits)
	}
	if cfg.Scheme == (layout.Scheme{}) {
		cfg.Scheme = layout.SchemeDefault
	}
	if err := cfg.Scheme.Validate(); err != nil {
		return nil, err
	}
	if cfg.Generate == nil {
		cfg.Generate = primes.Generate
	}
	s := &Sieve{cfg: cfg, id: uuid.New(), publisher: cfg.Publisher}
	if s.publisher == nil {
		s.publisher = noopPublisher{}
	}
	base := zerolog.Nop()
	if cfg.Logger != nil {
		base = *cfg.Logger
	}
	s.log = base.With().Str("component", "gpusieve").Str("run_id", s.id.String()).Logger()
	return s, nil
}

// ID returns the unique id of this sieve instance.
func (s *Sieve) ID() string { return s.id.String() }

// Initialized reports whether Init has completed.
func (s *Sieve) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Ready is Initialized under the name the HTTP layer expects.
func (s *Sieve) Ready() bool { return s.Initialized() }

// Layout returns the encoded layout, or nil before Init.
func (s *Sieve) Layout() *layout.Layout {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layout
}

// Bitmap returns the host mirror of the sieve bitmap, or nil before Init.
// The slice is only stable between Segment calls.
func (s *Sieve) Bitmap() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.bufs.bitmap == nil {
		return nil
	}
	return s.bufs.bitmap.Host()
}

// Status builds the response for /status.
func (s *Sieve) Status() types.StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp := types.StatusResponse{
		RunID:         s.ID(),
		Initialized:   s.initialized,
		RawBench:      s.cfg.RawBench,
		SievePrimes:   s.cfg.SievePrimes,
		SieveSizeBits: s.cfg.SieveSizeBits,
		Buffers:       s.bufs.status(),
	}
	if s.lastExponent != nil {
		e := *s.lastExponent
		resp.LastExponent = &e
	}
	if s.layout != nil {
		p := DescribePlan(s.layout.Plan)
		resp.Plan = &p
	}
	return resp
}

// Plan solves requested against this sieve's scheme without touching state.
func (s *Sieve) Plan(requested int) (types.PlanResponse, error) {
	p, err := layout.Solve(requested, s.cfg.Scheme)
	if err != nil {
		return types.PlanResponse{}, err
	}
	return DescribePlan(p), nil
}

// LayoutSummary builds the response for /layout; ok is false before Init.
func (s *Sieve) LayoutSummary() (types.LayoutResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.layout == nil {
		return types.LayoutResponse{}, false
	}
	return DescribeLayout(s.layout), true
}

// DescribePlan converts a plan into its wire form.
func DescribePlan(p layout.Plan) types.PlanResponse {
	return types.PlanResponse{
		Requested:      p.Requested,
		PrimeCount:     p.PrimeCount,
		RowsPerThread:  p.RowsPerThread,
		NotSieved:      p.Scheme.NotSieved,
		Inline:         p.Scheme.Inline,
		Crossover64K:   p.Crossovers.Below64K,
		Crossover128K:  p.Crossovers.Below128K,
		Crossover1M:    p.Crossovers.Below1M,
		Iterations:     p.Iterations,
		PrimeInfoBytes: p.PrimeInfoBytes(),
		RowTableBytes:  p.RowTableBytes(),
	}
}

// DescribeLayout converts an encoded layout into its wire form.
func DescribeLayout(l *layout.Layout) types.LayoutResponse {
	resp := types.LayoutResponse{Plan: DescribePlan(l.Plan), Bands: make([]types.BandStatus, 0, len(l.Bands))}
	for _, b := range l.Bands {
		resp.Bands = append(resp.Bands, types.BandStatus{
			Name:       b.ID.String(),
			FirstRow:   b.FirstRow,
			Rows:       b.Rows,
			ByteOffset: b.ByteOffset,
			Bytes:      b.Bytes,
			FirstPrime: b.FirstPrime,
			Primes:     b.Primes,
			Stride:     b.Stride,
		})
	}
	return resp
}
