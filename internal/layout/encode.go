package layout

import "fmt"

// BandID names one packed format region of primeInfo, in stream order.
type BandID int

const (
	BandPrefix BandID = iota
	BandBelow64K
	BandStraddle64K
	BandTransition64K
	BandDelta64K
	BandDelta128K
	BandDelta1M
)

var bandNames = [...]string{"prefix", "below_64k", "straddle_64k", "transition_64k", "delta_64k", "delta_128k", "delta_1m"}

func (b BandID) String() string {
	if b < 0 || int(b) >= len(bandNames) {
		return fmt.Sprintf("band(%d)", int(b))
	}
	return bandNames[b]
}

// MarshalText renders the band name in JSON output.
func (b BandID) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// RowDescriptor tells one group where its packed entries live. Lane j of the
// row handles prime index FirstPrime + j*Stride.
type RowDescriptor struct {
	Band       BandID `json:"band"`
	ByteOffset uint32 `json:"byte_offset"`
	FirstPrime uint32 `json:"first_prime"`
	Stride     uint32 `json:"stride"`
	// Mask covers the bits a bit-to-clear update must preserve.
	Mask uint32 `json:"mask"`
	// LaneBytes is the per-lane entry size of the row.
	LaneBytes uint32 `json:"lane_bytes"`
}

// BandExtent summarises one band of the encoded stream.
type BandExtent struct {
	ID         BandID `json:"id"`
	FirstRow   int    `json:"first_row"`
	Rows       int    `json:"rows"`
	ByteOffset int    `json:"byte_offset"`
	Bytes      int    `json:"bytes"`
	FirstPrime int    `json:"first_prime"`
	Primes     int    `json:"primes"`
	Stride     int    `json:"stride"`
}

// Layout is the packed sieve data for one plan. It is built once and treated
// as read-only afterwards, except for the bit-to-clear fields the device writes.
type Layout struct {
	Plan      Plan
	PrimeInfo []byte
	// Rows has one descriptor per data row; row 0 is the first below-64K row.
	Rows []RowDescriptor
	// Prefix describes the pad holding the inline primes' bit-to-clear
	// values. It is not part of the serialised row table.
	Prefix RowDescriptor
	Bands []BandExtent
	// Primes is the side table indexed by prime index; entries below
	// Scheme.NotSieved stay zero.
	Primes []uint32
}

// Band returns the extent of id if the plan uses that band.
func (l *Layout) Band(id BandID) (BandExtent, bool) {
	for _, b := range l.Bands {
		if b.ID == id {
			return b, true
		}
	}
	return BandExtent{}, false
}

type deltaFormat struct {
	bitToClear   uint
	inverseDelta uint
	group        int
	inverse      func(uint32) uint32
}

const primeDeltaBits = 7

var (
	format64K  = deltaFormat{bitToClear: 18, inverseDelta: 7, group: 3, inverse: Inverse}
	format128K = deltaFormat{bitToClear: 20, inverseDelta: 5, group: 4, inverse: SloppyInverse}
	format1M   = deltaFormat{bitToClear: 24, inverseDelta: 1, group: 4, inverse: SloppyInverse}
)

func (f deltaFormat) mask() uint32 { return ^uint32(0) << f.bitToClear }

// Encode packs primes according to plan. primes must hold at least
// plan.PrimeCount ascending primes starting at 2. On error nothing is returned.
func Encode(primes []uint32, plan Plan) (*Layout, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if len(primes) < plan.PrimeCount {
		return nil, fmt.Errorf("layout: %d primes supplied, plan needs %d", len(primes), plan.PrimeCount)
	}
	l := &Layout{
		Plan:      plan,
		PrimeInfo: make([]byte, plan.PrimeInfoBytes()),
		Rows:      make([]RowDescriptor, 0, plan.RowsPerThread),
		Primes:    make([]uint32, plan.PrimeCount),
	}
	e := &encoder{primes: primes, layout: l, cur: cursor{buf: l.PrimeInfo}}
	b := plan.bandRows()

	e.prefix()
	if err := e.below64K(b.below64K); err != nil {
		return nil, err
	}
	if err := e.straddle64K(b.straddle64K); err != nil {
		return nil, err
	}
	if err := e.delta64K(b.delta64K); err != nil {
		return nil, err
	}
	if err := e.deltaRegion(BandDelta128K, b.delta128K, format128K); err != nil {
		return nil, err
	}
	if err := e.deltaRegion(BandDelta1M, b.delta1M, format1M); err != nil {
		return nil, err
	}

	if e.cur.off != len(l.PrimeInfo) || e.next != plan.PrimeCount || len(l.Rows) != plan.RowsPerThread {
		return nil, fmt.Errorf("layout: encoded %d bytes, %d primes, %d rows; plan expects %d, %d, %d",
			e.cur.off, e.next, len(l.Rows), len(l.PrimeInfo), plan.PrimeCount, plan.RowsPerThread)
	}
	ns := plan.Scheme.NotSieved
	copy(l.Primes[ns:], primes[ns:plan.PrimeCount])
	return l, nil
}

type encoder struct {
	primes []uint32
	layout *Layout
	cur    cursor
	next   int
	band   BandExtent
}

func (e *encoder) begin(id BandID) {
	e.cur.band = id
	e.band = BandExtent{ID: id, FirstRow: len(e.layout.Rows), ByteOffset: e.cur.off}
}

func (e *encoder) end(firstPrime, primes, stride int) {
	e.band.Rows = len(e.layout.Rows) - e.band.FirstRow
	e.band.Bytes = e.cur.off - e.band.ByteOffset
	e.band.FirstPrime = firstPrime
	e.band.Primes = primes
	e.band.Stride = stride
	e.layout.Bands = append(e.layout.Bands, e.band)
}

func (e *encoder) row(offset, first, stride int, mask uint32, laneBytes int) {
	e.layout.Rows = append(e.layout.Rows, RowDescriptor{
		Band:       e.cur.band,
		ByteOffset: uint32(offset),
		FirstPrime: uint32(first),
		Stride:     uint32(stride),
		Mask:       mask,
		LaneBytes:  uint32(laneBytes),
	})
}

// prefix reserves room for the 16-bit bit-to-clear values of the inline primes.
func (e *encoder) prefix() {
	s := e.layout.Plan.Scheme
	e.begin(BandPrefix)
	e.layout.Prefix = RowDescriptor{
		Band:       BandPrefix,
		ByteOffset: uint32(e.cur.off),
		FirstPrime: uint32(s.NotSieved),
		Stride:     1,
		Mask:       0xFFFF0000,
		LaneBytes:  prefixPadBytes / LaneWidth,
	}
	e.cur.advance(prefixPadBytes)
	e.next = s.Prefix()
	e.end(s.NotSieved, s.Inline, 1)
}

// below64K stores p<<16 with a 16-bit bit-to-clear, then a 32-bit inverse block.
func (e *encoder) below64K(rows int) error {
	if rows == 0 {
		return nil
	}
	e.begin(BandBelow64K)
	first := e.next
	for r := 0; r < rows; r++ {
		e.row(e.cur.off, e.next, 1, 0xFFFF0000, denseSmallBytes)
		for j := 0; j < LaneWidth; j++ {
			p := e.primes[e.next+j]
			if err := e.cur.writeWord(j, p,
				field{name: FieldBitToClear, width: 16},
				field{name: FieldPrime, value: p, width: 16}); err != nil {
				return err
			}
			if err := e.cur.writeWord(LaneWidth+j, p, field{name: FieldInverse, value: Inverse(p), width: 32}); err != nil {
				return err
			}
		}
		e.cur.advance(LaneWidth * denseSmallBytes)
		e.next += LaneWidth
	}
	e.end(first, rows*LaneWidth, 1)
	return nil
}

func (e *encoder) straddle64K(rows int) error {
	if rows == 0 {
		return nil
	}
	e.begin(BandStraddle64K)
	first := e.next
	for r := 0; r < rows; r++ {
		if err := e.denseRow(e.next, 1, Inverse); err != nil {
			return err
		}
		e.next += LaneWidth
	}
	e.end(first, rows*LaneWidth, 1)
	return nil
}

// denseRow writes three 32-bit blocks: bit-to-clear, inverse, prime.
func (e *encoder) denseRow(first, stride int, inverse func(uint32) uint32) error {
	e.row(e.cur.off, first, stride, 0, denseBytes)
	for j := 0; j < LaneWidth; j++ {
		p := e.primes[first+j*stride]
		if err := e.cur.writeWord(j, p, field{name: FieldBitToClear, width: 32}); err != nil {
			return err
		}
		if err := e.cur.writeWord(LaneWidth+j, p, field{name: FieldInverse, value: inverse(p), width: 32}); err != nil {
			return err
		}
		if err := e.cur.writeWord(2*LaneWidth+j, p, field{name: FieldPrime, value: p, width: 32}); err != nil {
			return err
		}
	}
	e.cur.advance(LaneWidth * denseBytes)
	return nil
}

// delta64K is the only region whose dense transition row is a band of its own.
func (e *encoder) delta64K(loop int) error {
	if loop == 0 {
		return nil
	}
	base := e.next
	e.begin(BandTransition64K)
	if err := e.denseRow(base, loop, format64K.inverse); err != nil {
		return err
	}
	e.end(base, LaneWidth, loop)
	if loop > 1 {
		e.begin(BandDelta64K)
		if err := e.deltaRows(base, loop, format64K); err != nil {
			return err
		}
		e.end(base+1, (loop-1)*LaneWidth, loop)
	}
	e.next = base + loop*LaneWidth
	return nil
}

// deltaRegion emits a dense transition row followed by loop-1 delta rows.
func (e *encoder) deltaRegion(id BandID, loop int, f deltaFormat) error {
	if loop == 0 {
		return nil
	}
	base := e.next
	e.begin(id)
	if err := e.denseRow(base, loop, f.inverse); err != nil {
		return err
	}
	if err := e.deltaRows(base, loop, f); err != nil {
		return err
	}
	e.end(base, loop*LaneWidth, loop)
	e.next = base + loop*LaneWidth
	return nil
}

// deltaRows packs rows 1..loop-1 of a strided region. Within each group of
// f.group rows every entry is relative to the lane's prime in the row just
// before the group.
func (e *encoder) deltaRows(base, loop int, f deltaFormat) error {
	for k := 1; k < loop; k++ {
		e.row(e.cur.off+(k-1)*LaneWidth*deltaBytes, base+k, loop, f.mask(), deltaBytes)
	}
	for k := 1; k < loop; k += f.group {
		for j := 0; j < LaneWidth; j++ {
			anchor := base + j*loop + k - 1
			p := e.primes[anchor]
			for d := 0; d < f.group; d++ {
				q := e.primes[anchor+1+d]
				pd, err := e.cur.checked(FieldPrimeDelta, q, (int64(q)-int64(p))/2, primeDeltaBits)
				if err != nil {
					return err
				}
				id, err := e.cur.checked(FieldInverseDelta, q, int64(f.inverse(p))-int64(f.inverse(q)), f.inverseDelta)
				if err != nil {
					return err
				}
				if err := e.cur.writeWord((k-1+d)*LaneWidth+j, q, field{name: FieldBitToClear, width: f.bitToClear}, pd, id); err != nil {
					return err
				}
			}
		}
	}
	e.cur.advance((loop - 1) * LaneWidth * deltaBytes)
	return nil
}
