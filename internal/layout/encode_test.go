package layout

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"gpusieve/internal/primes"
)

func encodeBudget(t *testing.T, requested int, s Scheme) ([]uint32, *Layout) {
	t.Helper()
	p, err := Solve(requested, s)
	require.NoError(t, err)
	ps, err := primes.Generate(p.PrimeCount)
	require.NoError(t, err)
	l, err := Encode(ps, p)
	require.NoError(t, err)
	return ps, l
}

func word(b []byte, byteOff, slot int) uint32 {
	return binary.LittleEndian.Uint32(b[byteOff+4*slot:])
}

func TestEncodeTenThousand(t *testing.T) {
	ps, l := encodeBudget(t, 10000, SchemeDefault)
	require.Equal(t, 10038, l.Plan.PrimeCount)
	require.Len(t, l.PrimeInfo, l.Plan.PrimeInfoBytes())
	require.Len(t, l.Rows, l.Plan.RowsPerThread)

	var ids []BandID
	for _, b := range l.Bands {
		ids = append(ids, b.ID)
	}
	require.Equal(t, []BandID{BandPrefix, BandBelow64K, BandStraddle64K, BandTransition64K, BandDelta64K}, ids)

	below, ok := l.Band(BandBelow64K)
	require.True(t, ok)
	require.Equal(t, 54, below.FirstPrime)
	require.Equal(t, 1024, below.ByteOffset)
	require.Equal(t, 25, below.Rows)

	// first sub-64K lane: p<<16 then the exact inverse one block later
	require.Equal(t, ps[54]<<16, word(l.PrimeInfo, 1024, 0))
	require.Equal(t, Inverse(ps[54]), word(l.PrimeInfo, 1024, LaneWidth))

	tr, ok := l.Band(BandTransition64K)
	require.True(t, ok)
	require.Equal(t, 13, tr.Stride)
	require.Equal(t, ps[tr.FirstPrime+13], word(l.PrimeInfo, tr.ByteOffset, 2*LaneWidth+1))

	_, ok = l.Band(BandDelta128K)
	require.False(t, ok)
}

func TestEncodeAllBands(t *testing.T) {
	ps, l := encodeBudget(t, 82486, SchemeDefault)
	require.Len(t, l.Bands, 7)
	require.Len(t, l.Rows, 322)
	checkRows(t, l)
	checkCoverage(t, l)
	checkDeltas(t, ps, l)

	d1m, ok := l.Band(BandDelta1M)
	require.True(t, ok)
	require.Equal(t, 5, d1m.Rows)
	require.Equal(t, len(l.PrimeInfo), d1m.ByteOffset+d1m.Bytes)
}

func TestEncodeMoreClassesSideTable(t *testing.T) {
	ps, l := encodeBudget(t, 10000, SchemeMoreClasses)
	checkRows(t, l)
	checkCoverage(t, l)
	require.Equal(t, uint32(5), l.Prefix.FirstPrime)
	require.Equal(t, uint32(54), l.Rows[0].FirstPrime)
	for i := 0; i < 5; i++ {
		require.Zero(t, l.Primes[i])
	}
	require.Equal(t, ps[5], l.Primes[5])
	require.Equal(t, ps[10037], l.Primes[10037])
}

// checkRows verifies every row stays inside primeInfo and row 0 is the first
// data row right after the prefix pad.
func checkRows(t *testing.T, l *Layout) {
	t.Helper()
	require.Equal(t, BandPrefix, l.Prefix.Band)
	require.Equal(t, uint32(0), l.Prefix.ByteOffset)
	require.Equal(t, BandBelow64K, l.Rows[0].Band)
	require.Equal(t, uint32(1024), l.Rows[0].ByteOffset)
	require.Equal(t, uint32(l.Plan.Scheme.Prefix()), l.Rows[0].FirstPrime)
	for r, d := range l.Rows {
		require.NotEqual(t, BandPrefix, d.Band, "row %d", r)
		end := int(d.ByteOffset) + int(d.LaneBytes)*LaneWidth
		require.LessOrEqual(t, end, len(l.PrimeInfo), "row %d", r)
		if r > 0 {
			require.Greater(t, d.ByteOffset, l.Rows[r-1].ByteOffset, "row %d", r)
		}
	}
	for i := 1; i < len(l.Bands); i++ {
		require.Greater(t, l.Bands[i].FirstPrime, l.Bands[i-1].FirstPrime)
	}
}

// checkCoverage verifies every sieving prime index is owned by exactly one lane.
func checkCoverage(t *testing.T, l *Layout) {
	t.Helper()
	prefix := l.Plan.Scheme.Prefix()
	seen := make([]int, l.Plan.PrimeCount)
	for _, d := range l.Rows {
		for j := 0; j < LaneWidth; j++ {
			seen[int(d.FirstPrime)+j*int(d.Stride)]++
		}
	}
	for i := prefix; i < l.Plan.PrimeCount; i++ {
		require.Equal(t, 1, seen[i], "prime index %d", i)
	}
	total := 0
	for _, b := range l.Bands[1:] {
		total += b.Primes
	}
	require.Equal(t, l.Plan.PrimeCount-prefix, total)
}

// checkDeltas rebuilds every delta-coded prime from its group anchor.
func checkDeltas(t *testing.T, ps []uint32, l *Layout) {
	t.Helper()
	formats := map[BandID]deltaFormat{BandDelta64K: format64K, BandDelta128K: format128K, BandDelta1M: format1M}
	for _, d := range l.Rows {
		f, ok := formats[d.Band]
		if !ok || d.LaneBytes != deltaBytes {
			continue
		}
		require.Equal(t, f.mask(), d.Mask)
		for j := 0; j < LaneWidth; j++ {
			idx := int(d.FirstPrime) + j*int(d.Stride)
			w := word(l.PrimeInfo, int(d.ByteOffset), j)
			require.Zero(t, w&^f.mask(), "bit-to-clear placeholder must start at zero")
			pd := (w >> f.bitToClear) & (1<<primeDeltaBits - 1)
			id := w >> (f.bitToClear + primeDeltaBits)
			anchor := ps[idx-groupOffset(l, d, f)]
			require.Equal(t, ps[idx], anchor+2*pd, "prime index %d", idx)
			require.Equal(t, f.inverse(ps[idx]), f.inverse(anchor)-id, "prime index %d", idx)
		}
	}
}

// groupOffset is how many rows d sits after the anchor row of its group.
func groupOffset(l *Layout, d RowDescriptor, f deltaFormat) int {
	b, _ := l.Band(d.Band)
	base := b.FirstPrime
	if d.Band == BandDelta64K {
		// the transition row lives in its own band
		base--
	}
	k := int(d.FirstPrime) - base
	return (k-1)%f.group + 1
}

func TestEncodeRejectsPrimeDeltaOverflow(t *testing.T) {
	p, err := Solve(10000, SchemeDefault)
	require.NoError(t, err)
	ps, err := primes.Generate(p.PrimeCount)
	require.NoError(t, err)

	// open a 400 gap right after the 64K transition row's first lane
	tr := 54 + 26*LaneWidth
	for i := tr + 1; i < len(ps); i++ {
		ps[i] += 400
	}
	l, err := Encode(ps, p)
	require.Nil(t, l)
	require.True(t, IsEncodingOverflow(err), "got %v", err)

	var oe *EncodingOverflowError
	require.True(t, errors.As(err, &oe))
	require.Equal(t, BandDelta64K, oe.Band)
	require.Equal(t, FieldPrimeDelta, oe.Field)
	require.Equal(t, uint(7), oe.FieldWidth)
	require.Equal(t, ps[tr+1], oe.Prime)
	require.Greater(t, oe.Delta, int64(127))
}

func TestEncodeRejectsWidePrimeInSmallBand(t *testing.T) {
	p, err := Solve(1000, SchemeDefault)
	require.NoError(t, err)
	ps, err := primes.Generate(p.PrimeCount)
	require.NoError(t, err)
	ps[60] = 70001

	_, err = Encode(ps, p)
	var oe *EncodingOverflowError
	require.True(t, errors.As(err, &oe), "got %v", err)
	require.Equal(t, BandBelow64K, oe.Band)
	require.Equal(t, FieldPrime, oe.Field)
	require.Equal(t, uint(16), oe.FieldWidth)
}

func TestEncodeRejectsShortPrimeList(t *testing.T) {
	p, err := Solve(1000, SchemeDefault)
	require.NoError(t, err)
	ps, err := primes.Generate(p.PrimeCount - 1)
	require.NoError(t, err)
	_, err = Encode(ps, p)
	require.Error(t, err)
	require.False(t, IsEncodingOverflow(err))
}

func TestRowTableRoundTrip(t *testing.T) {
	ps, l := encodeBudget(t, 10000, SchemeDefault)
	table := l.RowTable()
	require.Len(t, table, l.Plan.RowTableBytes())
	first, err := ReadRow(table, 0)
	require.NoError(t, err)
	require.Equal(t, RowDescriptor{ByteOffset: 1024, FirstPrime: 54, Stride: 1, Mask: 0xFFFF0000}, first)
	// rows past rowsPerThread stay zero
	tail, err := ReadRow(table, l.Plan.RowsPerThread)
	require.NoError(t, err)
	require.Equal(t, RowDescriptor{}, tail)
	for r, want := range l.Rows {
		got, err := ReadRow(table, r)
		require.NoError(t, err)
		require.Equal(t, want.ByteOffset, got.ByteOffset)
		require.Equal(t, want.FirstPrime, got.FirstPrime)
		require.Equal(t, want.Stride, got.Stride)
		require.Equal(t, want.Mask, got.Mask)
	}
	for _, i := range []int{0, 3, 4, 54, 10037} {
		got, err := ReadPrime(table, i)
		require.NoError(t, err)
		if i < 4 {
			require.Zero(t, got)
			continue
		}
		require.Equal(t, ps[i], got)
	}
	_, err = ReadPrime(table, 10038)
	require.Error(t, err)
	_, err = ReadRow(table, MaxRowsPerThread)
	require.Error(t, err)
}
