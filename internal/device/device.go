// Package device abstracts the accelerator: buffers with host mirrors and the
// three kernels the sieve dispatches. Real backends live outside this module;
// Host is an in-memory dry-run backend.
package device

import "context"

// Buffer is a device allocation backed by host mirror memory.
type Buffer interface {
	Name() string
	// Host returns the mirror. Writes become visible to the device after Write.
	Host() []byte
	Len() int
}

// Device allocates and releases buffers on one accelerator context.
type Device interface {
	// CreateBuffer wraps host as the backing store of a new device buffer.
	CreateBuffer(name string, host []byte) (Buffer, error)
	// Write blocks until the host mirror of b has been copied to the device.
	Write(ctx context.Context, b Buffer) error
	ReleaseBuffer(b Buffer) error
}

// Dispatch is a launch shape: Groups groups of LaneWidth lanes.
type Dispatch struct {
	Groups    int `json:"groups"`
	LaneWidth int `json:"lane_width"`
}

// Lanes is the total number of lanes launched.
func (d Dispatch) Lanes() int { return d.Groups * d.LaneWidth }

// Int96 is a 96-bit value split into little-endian 32-bit limbs.
type Int96 struct {
	D0, D1, D2 uint32
}

// Int96From zero-extends k into three limbs.
func Int96From(k uint64) Int96 {
	return Int96{D0: uint32(k), D1: uint32(k >> 32)}
}

// Buffers are the three sieve buffers bound as kernel arguments.
type Buffers struct {
	Bitmap    Buffer
	PrimeInfo Buffer
	RowTable  Buffer
}

// Kernels runs the sieve kernels. Every call blocks until the device finishes.
type Kernels interface {
	// Bind installs the buffers used by every later launch.
	Bind(b Buffers) error
	ComputeModularInverses(ctx context.Context, d Dispatch, exponent uint32) error
	ComputeInitialBitOffsets(ctx context.Context, d Dispatch, kBase Int96) error
	RunSegmentSieve(ctx context.Context, d Dispatch, rowsPerThread int) error
}
