package gpusieve

import (
	"context"
	"time"

	"gpusieve/internal/layout"
)

// Init runs the one-time setup: solve the plan, generate primes, encode the
// packed stream and allocate the device buffers. Calls after a successful Init
// return nil without doing any work. A failed Init may be retried: buffers
// still held from a failed cleanup are released before the new allocation.
func (s *Sieve) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		setupSkippedTotal.WithLabelValues("init").Inc()
		return nil
	}
	start := time.Now()
	if err := s.release(); err != nil {
		s.fail("release", err)
		return errStage("release", err)
	}
	if err := s.build(); err != nil {
		s.fail("encode", err)
		return err
	}
	if err := s.allocate(ctx); err != nil {
		s.layout = nil
		s.fail("allocate", err)
		return errStage("allocate", err)
	}
	s.initialized = true
	s.publish(EventAllocated, map[string]any{"buffers": s.bufs.status()})
	s.log.Info().
		Dur("took", time.Since(start)).
		Bool("raw_bench", s.cfg.RawBench).
		Int("sieve_size_bits", s.cfg.SieveSizeBits).
		Msg("sieve initialized")
	return nil
}

// build produces the layout without touching the device.
func (s *Sieve) build() error {
	plan, err := layout.Solve(s.cfg.SievePrimes, s.cfg.Scheme)
	if err != nil {
		return errStage("plan", err)
	}
	ev := s.log.Info().
		Int("requested", plan.Requested).
		Int("prime_count", plan.PrimeCount).
		Int("rows_per_thread", plan.RowsPerThread).
		Int("not_sieved", plan.Scheme.NotSieved)
	if plan.Iterations > 0 {
		ev = ev.Int("iterations", plan.Iterations)
	}
	ev.Msg("sieve plan")
	s.publish(EventPlanned, map[string]any{
		"requested":       plan.Requested,
		"prime_count":     plan.PrimeCount,
		"rows_per_thread": plan.RowsPerThread,
	})

	ps, err := s.cfg.Generate(plan.PrimeCount)
	if err != nil {
		return errStage("generate", err)
	}
	l, err := layout.Encode(ps, plan)
	if err != nil {
		return errStage("encode", err)
	}
	s.log.Debug().
		Int("prime_info_bytes", len(l.PrimeInfo)).
		Int("row_table_bytes", plan.RowTableBytes()).
		Int("bitmap_bytes", s.cfg.SieveSizeBits/8).
		Uint32("largest_prime", l.Primes[len(l.Primes)-1]).
		Msg("sieve buffers sized")
	s.layout = l
	return nil
}

func (s *Sieve) fail(stage string, err error) {
	if st := Stage(err); st != "" {
		stage = st
	}
	s.log.Error().Err(err).Str("stage", stage).Msg("sieve init failed")
	s.publish(EventInitFailed, map[string]any{"stage": stage, "error": err.Error()})
}
