package layout

import (
	"encoding/binary"
	"fmt"
)

// Column offsets of the serialised row table, in 32-bit words.
const (
	colByteOffset = 0
	colFirstPrime = MaxRowsPerThread
	colStride     = 2 * MaxRowsPerThread
	colMask       = 3 * MaxRowsPerThread
	colPrimes     = 4 * MaxRowsPerThread
)

// RowTable serialises the descriptors column by column, followed by one
// (prime, inverse) word pair per prime index. The inverse words start at zero
// and are filled in by the modular-inverse kernel.
func (l *Layout) RowTable() []byte {
	buf := make([]byte, l.Plan.RowTableBytes())
	put := func(word int, v uint32) { binary.LittleEndian.PutUint32(buf[4*word:], v) }
	for r, d := range l.Rows {
		put(colByteOffset+r, d.ByteOffset)
		put(colFirstPrime+r, d.FirstPrime)
		put(colStride+r, d.Stride)
		put(colMask+r, d.Mask)
	}
	for i, p := range l.Primes {
		put(colPrimes+2*i, p)
	}
	return buf
}

// ReadRow decodes descriptor row r from a serialised row table.
func ReadRow(table []byte, r int) (RowDescriptor, error) {
	if r < 0 || r >= MaxRowsPerThread || len(table) < 4*colPrimes {
		return RowDescriptor{}, fmt.Errorf("layout: row %d outside table of %d bytes", r, len(table))
	}
	get := func(word int) uint32 { return binary.LittleEndian.Uint32(table[4*word:]) }
	return RowDescriptor{
		ByteOffset: get(colByteOffset + r),
		FirstPrime: get(colFirstPrime + r),
		Stride:     get(colStride + r),
		Mask:       get(colMask + r),
	}, nil
}

// ReadPrime returns the side table prime stored for prime index i.
func ReadPrime(table []byte, i int) (uint32, error) {
	off := 4 * (colPrimes + 2*i)
	if i < 0 || off+4 > len(table) {
		return 0, fmt.Errorf("layout: prime index %d outside table of %d bytes", i, len(table))
	}
	return binary.LittleEndian.Uint32(table[off:]), nil
}
