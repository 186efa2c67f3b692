package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Kernel names reported in launches and metrics.
const (
	KernelModularInverses = "calc_mod_inv"
	KernelBitOffsets      = "calc_bit_to_clear"
	KernelSegmentSieve    = "segment_sieve"
)

// Launch records one kernel dispatch seen by Host.
type Launch struct {
	Kernel        string   `json:"kernel"`
	Dispatch      Dispatch `json:"dispatch"`
	Exponent      uint32   `json:"exponent,omitempty"`
	KBase         Int96    `json:"k_base"`
	RowsPerThread int      `json:"rows_per_thread,omitempty"`
}

// Host is a dry-run backend: buffers are plain host memory and kernel launches
// are validated against the bound buffers and recorded instead of executed.
// The Fail* maps inject errors keyed by buffer or kernel name.
type Host struct {
	mu        sync.Mutex
	blockSize int
	live      map[string]*hostBuffer
	bound     Buffers
	launches  []Launch
	writes    map[string]int

	FailCreate  map[string]error
	FailRelease map[string]error
	FailKernel  map[string]error
}

type hostBuffer struct {
	name string
	mem  []byte
}

func (b *hostBuffer) Name() string { return b.name }
func (b *hostBuffer) Host() []byte { return b.mem }
func (b *hostBuffer) Len() int     { return len(b.mem) }

// NewHost returns a Host whose segment launches sieve blockSize bytes per group.
func NewHost(blockSize int) *Host {
	return &Host{
		blockSize: blockSize,
		live:      make(map[string]*hostBuffer),
		writes:    make(map[string]int),
	}
}

func (h *Host) CreateBuffer(name string, host []byte) (Buffer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.FailCreate[name]; err != nil {
		return nil, ErrDevice("create buffer", name, err)
	}
	if len(host) == 0 {
		return nil, ErrDevice("create buffer", name, errors.New("zero-sized buffer"))
	}
	if _, dup := h.live[name]; dup {
		return nil, ErrDevice("create buffer", name, errors.New("buffer already exists"))
	}
	b := &hostBuffer{name: name, mem: host}
	h.live[name] = b
	return b, nil
}

func (h *Host) Write(ctx context.Context, b Buffer) error {
	if err := ctx.Err(); err != nil {
		return ErrDevice("write buffer", b.Name(), err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.live[b.Name()] != b {
		return ErrDevice("write buffer", b.Name(), errors.New("buffer not allocated"))
	}
	h.writes[b.Name()]++
	return nil
}

func (h *Host) ReleaseBuffer(b Buffer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.FailRelease[b.Name()]; err != nil {
		return ErrDevice("release buffer", b.Name(), err)
	}
	if h.live[b.Name()] != b {
		return ErrDevice("release buffer", b.Name(), errors.New("buffer not allocated"))
	}
	delete(h.live, b.Name())
	return nil
}

// Live returns the number of allocated buffers.
func (h *Host) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.live)
}

// Writes returns how many times the named buffer was uploaded.
func (h *Host) Writes(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writes[name]
}

// Launches returns a copy of every recorded launch in order.
func (h *Host) Launches() []Launch {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Launch, len(h.launches))
	copy(out, h.launches)
	return out
}

func (h *Host) Bind(b Buffers) error {
	if b.Bitmap == nil || b.PrimeInfo == nil || b.RowTable == nil {
		return ErrDevice("bind", "", errors.New("all three sieve buffers are required"))
	}
	h.mu.Lock()
	h.bound = b
	h.mu.Unlock()
	return nil
}

func (h *Host) ComputeModularInverses(ctx context.Context, d Dispatch, exponent uint32) error {
	return h.launch(ctx, Launch{Kernel: KernelModularInverses, Dispatch: d, Exponent: exponent})
}

func (h *Host) ComputeInitialBitOffsets(ctx context.Context, d Dispatch, kBase Int96) error {
	return h.launch(ctx, Launch{Kernel: KernelBitOffsets, Dispatch: d, KBase: kBase})
}

func (h *Host) RunSegmentSieve(ctx context.Context, d Dispatch, rowsPerThread int) error {
	return h.launch(ctx, Launch{Kernel: KernelSegmentSieve, Dispatch: d, RowsPerThread: rowsPerThread})
}

func (h *Host) launch(ctx context.Context, l Launch) error {
	if err := ctx.Err(); err != nil {
		return ErrDevice(l.Kernel, "", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.FailKernel[l.Kernel]; err != nil {
		return ErrDevice(l.Kernel, "", err)
	}
	if h.bound.Bitmap == nil {
		return ErrDevice(l.Kernel, "", errors.New("buffers not bound"))
	}
	if l.Dispatch.Groups <= 0 || l.Dispatch.LaneWidth <= 0 {
		return ErrDevice(l.Kernel, "", fmt.Errorf("empty dispatch %+v", l.Dispatch))
	}
	if l.Kernel == KernelSegmentSieve {
		if need := l.Dispatch.Groups * h.blockSize; need > h.bound.Bitmap.Len() {
			return ErrDevice(l.Kernel, h.bound.Bitmap.Name(), fmt.Errorf("%d groups need %d bytes, bitmap holds %d", l.Dispatch.Groups, need, h.bound.Bitmap.Len()))
		}
	}
	h.launches = append(h.launches, l)
	return nil
}
