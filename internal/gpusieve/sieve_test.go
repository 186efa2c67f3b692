package gpusieve

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gpusieve/internal/device"
	"gpusieve/internal/layout"
)

func TestNew_AppliesDefaults(t *testing.T) {
	h := device.NewHost(layout.BlockSizeBytes)
	s, err := New(Config{Device: h, Kernels: h})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.cfg.SievePrimes != DefaultSievePrimes || s.cfg.SieveSizeBits != DefaultSieveSizeBits {
		t.Fatalf("defaults not applied: %+v", s.cfg)
	}
	if s.cfg.Scheme != layout.SchemeDefault {
		t.Fatalf("scheme = %+v", s.cfg.Scheme)
	}
	if s.ID() == "" || s.Initialized() {
		t.Fatalf("fresh sieve: id=%q initialized=%v", s.ID(), s.Initialized())
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	h := device.NewHost(layout.BlockSizeBytes)
	cases := []Config{
		{Kernels: h},
		{Device: h},
		{Device: h, Kernels: h, SieveSizeBits: 1000},
		{Device: h, Kernels: h, SieveSizeBits: -layout.BlockSizeBits},
		{Device: h, Kernels: h, Scheme: layout.Scheme{NotSieved: 3, Inline: 50}},
	}
	for i, c := range cases {
		if _, err := New(c); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestInit_RunsOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := f.sieve.Init(ctx); err != nil {
			t.Fatalf("Init %d: %v", i, err)
		}
	}
	if f.gen.calls != 1 {
		t.Fatalf("generate calls = %d, want 1", f.gen.calls)
	}
	if f.host.Live() != 3 {
		t.Fatalf("live buffers = %d, want 3", f.host.Live())
	}
	if f.host.Writes(BufferPrimeInfo) != 1 || f.host.Writes(BufferRowTable) != 1 {
		t.Fatalf("uploads: prime_info=%d row_table=%d", f.host.Writes(BufferPrimeInfo), f.host.Writes(BufferRowTable))
	}
	if f.host.Writes(BufferBitmap) != 0 {
		t.Fatalf("bitmap uploaded outside raw bench mode")
	}
}

func TestInit_BufferSizesMatchLayout(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.sieve.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	l := f.sieve.Layout()
	if l.Plan.PrimeCount != 10038 || l.Plan.RowsPerThread != 39 {
		t.Fatalf("plan = %+v", l.Plan)
	}
	if f.sieve.bufs.primeInfo.Len() != len(l.PrimeInfo) || len(l.PrimeInfo) != l.Plan.PrimeInfoBytes() {
		t.Fatalf("prime_info buffer %d, layout %d, plan %d", f.sieve.bufs.primeInfo.Len(), len(l.PrimeInfo), l.Plan.PrimeInfoBytes())
	}
	if f.sieve.bufs.rowTable.Len() != l.Plan.RowTableBytes() {
		t.Fatalf("row_table buffer %d, want %d", f.sieve.bufs.rowTable.Len(), l.Plan.RowTableBytes())
	}
	if len(f.sieve.Bitmap()) != testSieveBits/8 {
		t.Fatalf("bitmap = %d bytes", len(f.sieve.Bitmap()))
	}
}

func TestInit_UploadedRowTableStartsWithFirstDataRow(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.sieve.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	table := f.sieve.bufs.rowTable.Host()
	first, err := layout.ReadRow(table, 0)
	if err != nil {
		t.Fatalf("ReadRow(0): %v", err)
	}
	want := layout.RowDescriptor{ByteOffset: 1024, FirstPrime: 54, Stride: 1, Mask: 0xFFFF0000}
	if first != want {
		t.Fatalf("row 0 = %+v, want %+v", first, want)
	}
	rows := f.sieve.Layout().Plan.RowsPerThread
	last, err := layout.ReadRow(table, rows-1)
	if err != nil || last.ByteOffset == 0 {
		t.Fatalf("row %d = %+v err=%v", rows-1, last, err)
	}
	if tail, _ := layout.ReadRow(table, rows); tail != (layout.RowDescriptor{}) {
		t.Fatalf("row %d = %+v, want zero", rows, tail)
	}
}

func TestInit_CreateFailureReleasesAndRetries(t *testing.T) {
	f := newFixture(t, nil)
	boom := errors.New("out of device memory")
	f.host.FailCreate = map[string]error{BufferRowTable: boom}
	err := f.sieve.Init(context.Background())
	if !device.IsDeviceFailure(err) || !errors.Is(err, boom) {
		t.Fatalf("Init err = %v, want device failure wrapping %v", err, boom)
	}
	if Stage(err) != "allocate" {
		t.Fatalf("stage = %q", Stage(err))
	}
	if f.sieve.Initialized() || f.host.Live() != 0 {
		t.Fatalf("initialized=%v live=%d after failed Init", f.sieve.Initialized(), f.host.Live())
	}
	if got := f.dev.released; len(got) != 2 || got[0] != BufferBitmap || got[1] != BufferPrimeInfo {
		t.Fatalf("released = %v", got)
	}

	f.host.FailCreate = nil
	if err := f.sieve.Init(context.Background()); err != nil {
		t.Fatalf("retry Init: %v", err)
	}
	if !f.sieve.Initialized() {
		t.Fatalf("not initialized after retry")
	}
}

func TestInit_RetryAfterFailedCleanup(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	boom := errors.New("out of device memory")
	busy := errors.New("busy")
	f.host.FailCreate = map[string]error{BufferRowTable: boom}
	f.host.FailRelease = map[string]error{BufferPrimeInfo: busy}
	if err := f.sieve.Init(ctx); !errors.Is(err, boom) || Stage(err) != "allocate" {
		t.Fatalf("Init err = %v stage = %q", err, Stage(err))
	}
	if f.host.Live() != 1 {
		t.Fatalf("live = %d, want the prime_info buffer left over", f.host.Live())
	}

	// The leftover handle still refuses to go: Init fails before creating anything.
	f.host.FailCreate = nil
	if err := f.sieve.Init(ctx); !errors.Is(err, busy) || Stage(err) != "release" {
		t.Fatalf("Init err = %v stage = %q", err, Stage(err))
	}
	if f.host.Live() != 1 || f.sieve.Initialized() {
		t.Fatalf("live=%d initialized=%v", f.host.Live(), f.sieve.Initialized())
	}

	f.host.FailRelease = nil
	if err := f.sieve.Init(ctx); err != nil {
		t.Fatalf("retry Init: %v", err)
	}
	if !f.sieve.Initialized() || f.host.Live() != 3 {
		t.Fatalf("initialized=%v live=%d", f.sieve.Initialized(), f.host.Live())
	}
	if got := f.dev.released; len(got) != 2 || got[0] != BufferBitmap || got[1] != BufferPrimeInfo {
		t.Fatalf("released = %v", got)
	}
}

func TestInit_GenerateFailure(t *testing.T) {
	boom := errors.New("no memory")
	f := newFixture(t, func(c *Config) {
		c.Generate = func(int) ([]uint32, error) { return nil, boom }
	})
	err := f.sieve.Init(context.Background())
	if !errors.Is(err, boom) || Stage(err) != "generate" {
		t.Fatalf("err = %v stage = %q", err, Stage(err))
	}
	if f.host.Live() != 0 {
		t.Fatalf("buffers allocated after generate failure")
	}
	names := f.pub.Names()
	if len(names) != 2 || names[0] != EventPlanned || names[1] != EventInitFailed {
		t.Fatalf("events = %v", names)
	}
}

func TestInit_EncodingOverflowAbortsBeforeDevice(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.Generate = func(n int) ([]uint32, error) {
			ps := make([]uint32, n)
			for i := range ps {
				ps[i] = uint32(2 + 1000*i)
			}
			return ps, nil
		}
	})
	err := f.sieve.Init(context.Background())
	if !layout.IsEncodingOverflow(err) {
		t.Fatalf("err = %v, want encoding overflow", err)
	}
	if f.host.Live() != 0 || len(f.host.Launches()) != 0 {
		t.Fatalf("device touched after overflow")
	}
}

func TestFree_ReleaseOrderAndReset(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if err := f.sieve.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := f.sieve.InitExponent(ctx, 66362159); err != nil {
		t.Fatalf("InitExponent: %v", err)
	}
	if err := f.sieve.Free(); err != nil {
		t.Fatalf("Free: %v", err)
	}
	want := []string{BufferBitmap, BufferRowTable, BufferPrimeInfo}
	if len(f.dev.released) != 3 {
		t.Fatalf("released = %v", f.dev.released)
	}
	for i := range want {
		if f.dev.released[i] != want[i] {
			t.Fatalf("released = %v, want %v", f.dev.released, want)
		}
	}
	if f.sieve.Initialized() || f.sieve.Layout() != nil || f.sieve.Status().LastExponent != nil {
		t.Fatalf("state not reset after Free")
	}
	if err := f.sieve.Free(); err != nil {
		t.Fatalf("second Free: %v", err)
	}
}

func TestFree_StopsAtFirstFailure(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.sieve.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	boom := errors.New("busy")
	f.host.FailRelease = map[string]error{BufferRowTable: boom}
	if err := f.sieve.Free(); !errors.Is(err, boom) {
		t.Fatalf("Free err = %v", err)
	}
	if len(f.dev.released) != 1 || f.dev.released[0] != BufferBitmap {
		t.Fatalf("released = %v", f.dev.released)
	}
	if !f.sieve.Initialized() || f.host.Live() != 2 {
		t.Fatalf("initialized=%v live=%d", f.sieve.Initialized(), f.host.Live())
	}

	f.host.FailRelease = nil
	if err := f.sieve.Free(); err != nil {
		t.Fatalf("resumed Free: %v", err)
	}
	if len(f.dev.released) != 3 || f.host.Live() != 0 {
		t.Fatalf("released = %v live = %d", f.dev.released, f.host.Live())
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t, nil)
	st := f.sieve.Status()
	if st.Initialized || st.Plan != nil || len(st.Buffers) != 0 {
		t.Fatalf("status before Init = %+v", st)
	}
	ctx := context.Background()
	if err := f.sieve.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := f.sieve.InitExponent(ctx, 1277); err != nil {
		t.Fatalf("InitExponent: %v", err)
	}
	st = f.sieve.Status()
	if !st.Initialized || st.Plan == nil || st.Plan.RowsPerThread != 39 || len(st.Buffers) != 3 {
		t.Fatalf("status = %+v", st)
	}
	if st.LastExponent == nil || *st.LastExponent != 1277 {
		t.Fatalf("last exponent = %v", st.LastExponent)
	}
	if st.RunID != f.sieve.ID() {
		t.Fatalf("run id = %q", st.RunID)
	}
}

func TestLayoutSummary(t *testing.T) {
	f := newFixture(t, nil)
	if _, ok := f.sieve.LayoutSummary(); ok {
		t.Fatalf("layout summary before Init")
	}
	if err := f.sieve.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	sum, ok := f.sieve.LayoutSummary()
	if !ok || len(sum.Bands) != len(f.sieve.Layout().Bands) {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.Bands[0].Name != "prefix" {
		t.Fatalf("first band = %q", sum.Bands[0].Name)
	}
	if sum.Plan.PrimeInfoBytes != 70656 {
		t.Fatalf("prime info bytes = %d", sum.Plan.PrimeInfoBytes)
	}
}

func TestPlan_DoesNotTouchState(t *testing.T) {
	f := newFixture(t, nil)
	p, err := f.sieve.Plan(82486)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if p.PrimeCount != 82486 || p.RowsPerThread != 322 || p.Crossover1M != 317 {
		t.Fatalf("plan = %+v", p)
	}
	if f.sieve.Initialized() || f.gen.calls != 0 {
		t.Fatalf("Plan mutated sieve state")
	}
}

func TestStatus_ConcurrentWithLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				st := f.sieve.Status()
				if st.Initialized && st.Plan == nil {
					t.Errorf("initialized status without plan: %+v", st)
					return
				}
				_ = f.sieve.Ready()
				_, _ = f.sieve.LayoutSummary()
				_ = f.sieve.Bitmap()
			}
		}()
	}
	for i := 0; i < 3; i++ {
		if err := f.sieve.Init(ctx); err != nil {
			t.Errorf("Init: %v", err)
			break
		}
		if err := f.sieve.SieveRange(ctx, 66362159, 12, 3*testSieveBits/2, nil); err != nil {
			t.Errorf("SieveRange: %v", err)
			break
		}
		if err := f.sieve.Free(); err != nil {
			t.Errorf("Free: %v", err)
			break
		}
	}
	close(done)
	wg.Wait()
}
