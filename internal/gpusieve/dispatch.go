package gpusieve

import (
	"context"

	"gpusieve/internal/device"
	"gpusieve/internal/layout"
)

// setupDispatch covers one lane per packed prime slot, prefix row included.
func (s *Sieve) setupDispatch() device.Dispatch {
	return device.Dispatch{Groups: s.layout.Plan.LaneGroups(), LaneWidth: layout.LaneWidth}
}

// InitExponent computes modular inverses for exponent. Repeating the last
// exponent is a no-op. The exponent is remembered only after the kernel
// completes.
func (s *Sieve) InitExponent(ctx context.Context, exponent uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if s.cfg.RawBench {
		return nil
	}
	if s.lastExponent != nil && *s.lastExponent == exponent {
		setupSkippedTotal.WithLabelValues("exponent").Inc()
		return nil
	}
	d := s.setupDispatch()
	err := observeKernel(device.KernelModularInverses, func() error {
		return s.cfg.Kernels.ComputeModularInverses(ctx, d, exponent)
	})
	if err != nil {
		s.log.Error().Err(err).Uint32("exponent", exponent).Msg("modular inverse kernel failed")
		return err
	}
	s.lastExponent = &exponent
	s.publish(EventExponentChanged, map[string]any{"exponent": exponent})
	s.log.Debug().Uint32("exponent", exponent).Int("groups", d.Groups).Msg("exponent initialized")
	return nil
}

// InitClass computes the first bit to clear of every prime for the class
// starting at kMin. It always dispatches once an exponent is set, and returns
// ErrNoExponent if InitExponent has not completed since Init.
func (s *Sieve) InitClass(ctx context.Context, kMin uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if s.cfg.RawBench {
		return nil
	}
	if s.lastExponent == nil {
		return ErrNoExponent
	}
	d := s.setupDispatch()
	err := observeKernel(device.KernelBitOffsets, func() error {
		return s.cfg.Kernels.ComputeInitialBitOffsets(ctx, d, device.Int96From(kMin))
	})
	if err != nil {
		s.log.Error().Err(err).Uint64("k_min", kMin).Msg("bit offset kernel failed")
		return err
	}
	s.publish(EventClassStarted, map[string]any{"k_min": kMin})
	return nil
}

// SegmentBits returns the number of bits the next segment covers.
func (s *Sieve) SegmentBits(kRemaining uint64) int {
	if kRemaining < uint64(s.cfg.SieveSizeBits) {
		return int(kRemaining)
	}
	return s.cfg.SieveSizeBits
}

// Segment sieves the next min(bitmap capacity, kRemaining) candidates into
// the bitmap. A zero kRemaining dispatches nothing.
func (s *Sieve) Segment(ctx context.Context, kRemaining uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if s.cfg.RawBench {
		return nil
	}
	bits := s.SegmentBits(kRemaining)
	if bits == 0 {
		return nil
	}
	d := device.Dispatch{
		Groups:    (bits + layout.BlockSizeBits - 1) / layout.BlockSizeBits,
		LaneWidth: layout.LaneWidth,
	}
	rows := s.layout.Plan.RowsPerThread
	err := observeKernel(device.KernelSegmentSieve, func() error {
		return s.cfg.Kernels.RunSegmentSieve(ctx, d, rows)
	})
	if err != nil {
		s.log.Error().Err(err).Int("bits", bits).Msg("segment sieve kernel failed")
		return err
	}
	segmentBitsTotal.Add(float64(bits))
	s.publish(EventSegment, map[string]any{"bits": bits, "groups": d.Groups})
	return nil
}

// SieveRange drives one class: it initialises exponent and class, then sieves
// kCount candidates segment by segment, calling consume with the candidate
// offset and bit count after each segment while the bitmap holds its result.
func (s *Sieve) SieveRange(ctx context.Context, exponent uint32, kMin, kCount uint64, consume func(offset uint64, bits int) error) error {
	if err := s.InitExponent(ctx, exponent); err != nil {
		return err
	}
	if err := s.InitClass(ctx, kMin); err != nil {
		return err
	}
	for done := uint64(0); done < kCount; {
		if err := ctx.Err(); err != nil {
			return err
		}
		remaining := kCount - done
		if err := s.Segment(ctx, remaining); err != nil {
			return err
		}
		bits := s.SegmentBits(remaining)
		if consume != nil {
			if err := consume(done, bits); err != nil {
				return err
			}
		}
		done += uint64(bits)
	}
	return nil
}
