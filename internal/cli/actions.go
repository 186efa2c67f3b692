package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"gpusieve/internal/device"
	"gpusieve/internal/gpusieve"
	"gpusieve/internal/httpapi"
	"gpusieve/internal/layout"
	"gpusieve/internal/primes"
	"gpusieve/pkg/types"
)

// Indirection layer to allow stubbing in tests
var (
	fnPlan   = runPlan
	fnLayout = runLayout
	fnRun    = runSieve
	fnServe  = runServe
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runPlan(o *Options) error {
	p, err := layout.Solve(o.Config.SievePrimes, o.Config.Scheme())
	if err != nil {
		return err
	}
	return writeJSON(o.Out, gpusieve.DescribePlan(p))
}

// layoutReport is the output of the layout command.
type layoutReport struct {
	types.LayoutResponse
	Prefix *layout.RowDescriptor  `json:"prefix,omitempty"`
	Rows   []layout.RowDescriptor `json:"rows,omitempty"`
}

func runLayout(o *Options, withRows bool) error {
	p, err := layout.Solve(o.Config.SievePrimes, o.Config.Scheme())
	if err != nil {
		return err
	}
	ps, err := primes.Generate(p.PrimeCount)
	if err != nil {
		return err
	}
	l, err := layout.Encode(ps, p)
	if err != nil {
		return err
	}
	rep := layoutReport{LayoutResponse: gpusieve.DescribeLayout(l)}
	if withRows {
		rep.Prefix = &l.Prefix
		rep.Rows = l.Rows
	}
	return writeJSON(o.Out, rep)
}

// runArgs are the class parameters of the run command.
type runArgs struct {
	Exponent uint32
	KMin     uint64
	KRange   uint64
}

// runReport is the output of the run command.
type runReport struct {
	RunID    string          `json:"run_id"`
	Exponent uint32          `json:"exponent"`
	KMin     uint64          `json:"k_min"`
	KRange   uint64          `json:"k_range"`
	Segments int             `json:"segments"`
	Launches []device.Launch `json:"launches"`
}

func newHostSieve(o *Options, pub gpusieve.EventPublisher) (*gpusieve.Sieve, *device.Host, error) {
	host := device.NewHost(layout.BlockSizeBytes)
	s, err := gpusieve.New(gpusieve.Config{
		SievePrimes:   o.Config.SievePrimes,
		SieveSizeBits: o.Config.SieveSizeBits(),
		Scheme:        o.Config.Scheme(),
		RawBench:      o.Config.RawBench,
		Device:        host,
		Kernels:       host,
		Logger:        &o.Log,
		Publisher:     pub,
	})
	return s, host, err
}

func runSieve(ctx context.Context, o *Options, a runArgs) error {
	s, host, err := newHostSieve(o, nil)
	if err != nil {
		return err
	}
	if err := s.Init(ctx); err != nil {
		return err
	}
	defer func() {
		if err := s.Free(); err != nil {
			o.Log.Error().Err(err).Msg("free")
		}
	}()
	segments := 0
	err = s.SieveRange(ctx, a.Exponent, a.KMin, a.KRange, func(off uint64, bits int) error {
		segments++
		o.Log.Debug().Uint64("offset", off).Int("bits", bits).Msg("segment sieved")
		return nil
	})
	if err != nil {
		return err
	}
	return writeJSON(o.Out, runReport{
		RunID:    s.ID(),
		Exponent: a.Exponent,
		KMin:     a.KMin,
		KRange:   a.KRange,
		Segments: segments,
		Launches: host.Launches(),
	})
}

func runServe(ctx context.Context, o *Options) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, _, err := newHostSieve(o, nil)
	if err != nil {
		return err
	}
	httpapi.SetLogger(o.Log)
	srv := &http.Server{
		Addr:              o.Config.Addr,
		Handler:           httpapi.NewMux(s),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o.Log.Info().Str("addr", o.Config.Addr).Str("run_id", s.ID()).Msg("gpusieve listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			o.Log.Warn().Err(err).Msg("graceful shutdown error")
		}
		return nil
	})

	// Status stays served when setup fails; /readyz reports it.
	if err := s.Init(gctx); err != nil {
		o.Log.Error().Err(err).Msg("sieve init failed")
	}
	werr := g.Wait()
	if err := s.Free(); err != nil {
		return err
	}
	return werr
}
