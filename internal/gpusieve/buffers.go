package gpusieve

import (
	"context"

	"gpusieve/internal/device"
	"gpusieve/pkg/types"
)

// Device buffer names.
const (
	BufferBitmap    = "bitmap"
	BufferPrimeInfo = "prime_info"
	BufferRowTable  = "row_table"
)

type buffers struct {
	bitmap    device.Buffer
	primeInfo device.Buffer
	rowTable  device.Buffer
}

func (b buffers) status() []types.BufferStatus {
	out := make([]types.BufferStatus, 0, 3)
	for _, buf := range []device.Buffer{b.bitmap, b.primeInfo, b.rowTable} {
		if buf != nil {
			out = append(out, types.BufferStatus{Name: buf.Name(), Bytes: buf.Len()})
		}
	}
	return out
}

// allocate creates and uploads the three buffers from the encoded layout and
// binds them to the kernels. On failure every buffer it created is released;
// handles whose release fails stay in s.bufs for the next Init or Free.
func (s *Sieve) allocate(ctx context.Context) (err error) {
	bitmap := make([]byte, s.cfg.SieveSizeBits/8)
	if s.cfg.RawBench {
		for i := range bitmap {
			bitmap[i] = 0xFF
		}
	}
	specs := []struct {
		name string
		host []byte
		dst  *device.Buffer
	}{
		{BufferBitmap, bitmap, &s.bufs.bitmap},
		{BufferPrimeInfo, s.layout.PrimeInfo, &s.bufs.primeInfo},
		{BufferRowTable, s.layout.RowTable(), &s.bufs.rowTable},
	}
	defer func() {
		if err != nil {
			if rerr := s.release(); rerr != nil {
				s.log.Warn().Err(rerr).Msg("release after failed allocation")
			}
		}
	}()
	for _, sp := range specs {
		b, cerr := s.cfg.Device.CreateBuffer(sp.name, sp.host)
		if cerr != nil {
			return cerr
		}
		*sp.dst = b
		bufferBytes.WithLabelValues(sp.name).Set(float64(b.Len()))
		s.log.Debug().Str("buffer", sp.name).Int("bytes", b.Len()).Msg("device buffer created")
	}
	// The bitmap is only uploaded when it carries content.
	if s.cfg.RawBench {
		if err := s.cfg.Device.Write(ctx, s.bufs.bitmap); err != nil {
			return err
		}
	}
	for _, b := range []device.Buffer{s.bufs.primeInfo, s.bufs.rowTable} {
		if err := s.cfg.Device.Write(ctx, b); err != nil {
			return err
		}
	}
	return s.cfg.Kernels.Bind(device.Buffers{
		Bitmap:    s.bufs.bitmap,
		PrimeInfo: s.bufs.primeInfo,
		RowTable:  s.bufs.rowTable,
	})
}

// release drops buffers in bitmap, row table, prime info order and stops at
// the first failure. Released handles are cleared so a later call resumes.
func (s *Sieve) release() error {
	for _, dst := range []*device.Buffer{&s.bufs.bitmap, &s.bufs.rowTable, &s.bufs.primeInfo} {
		if *dst == nil {
			continue
		}
		name := (*dst).Name()
		if err := s.cfg.Device.ReleaseBuffer(*dst); err != nil {
			return err
		}
		*dst = nil
		bufferBytes.WithLabelValues(name).Set(0)
	}
	return nil
}

// Free releases the device buffers. After a complete release the sieve returns
// to its uninitialised state and Init may be called again.
func (s *Sieve) Free() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.release(); err != nil {
		s.log.Error().Err(err).Msg("free device buffers")
		return err
	}
	if s.initialized {
		s.publish(EventFreed, nil)
	}
	s.initialized = false
	s.lastExponent = nil
	s.layout = nil
	return nil
}
