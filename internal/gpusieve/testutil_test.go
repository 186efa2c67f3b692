package gpusieve

import (
	"testing"

	"gpusieve/internal/device"
	"gpusieve/internal/layout"
	"gpusieve/internal/primes"
)

const testSieveBits = 4 * layout.BlockSizeBits

// recordingDevice wraps Host and records release order.
type recordingDevice struct {
	*device.Host
	released []string
}

func (d *recordingDevice) ReleaseBuffer(b device.Buffer) error {
	if err := d.Host.ReleaseBuffer(b); err != nil {
		return err
	}
	d.released = append(d.released, b.Name())
	return nil
}

// countingGenerate wraps primes.Generate and counts calls.
type countingGenerate struct{ calls int }

func (g *countingGenerate) generate(count int) ([]uint32, error) {
	g.calls++
	return primes.Generate(count)
}

type fixture struct {
	sieve *Sieve
	host  *device.Host
	dev   *recordingDevice
	gen   *countingGenerate
	pub   *MemoryPublisher
}

func newFixture(t *testing.T, mutate func(*Config)) fixture {
	t.Helper()
	host := device.NewHost(layout.BlockSizeBytes)
	f := fixture{
		host: host,
		dev:  &recordingDevice{Host: host},
		gen:  &countingGenerate{},
		pub:  NewMemoryPublisher(),
	}
	cfg := Config{
		SievePrimes:   10000,
		SieveSizeBits: testSieveBits,
		Device:        f.dev,
		Kernels:       host,
		Publisher:     f.pub,
		Generate:      f.gen.generate,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.sieve = s
	return f
}

func kernelLaunches(h *device.Host, kernel string) []device.Launch {
	var out []device.Launch
	for _, l := range h.Launches() {
		if l.Kernel == kernel {
			out = append(out, l)
		}
	}
	return out
}
