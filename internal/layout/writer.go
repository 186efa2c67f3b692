package layout

import "encoding/binary"

const (
	denseSmallBytes = 8
	denseBytes      = 12
	deltaBytes      = 4
)

// field is one named value packed into a 32-bit word, low bits first.
type field struct {
	name  string
	value uint32
	width uint
}

// Field names used in overflow reports.
const (
	FieldBitToClear   = "bit_to_clear"
	FieldPrime        = "prime"
	FieldInverse      = "inverse"
	FieldPrimeDelta   = "prime_delta"
	FieldInverseDelta = "inverse_delta"
)

// cursor walks primeInfo row block by row block. Words are addressed by slot
// relative to the current block and stored little-endian.
type cursor struct {
	buf  []byte
	off  int
	band BandID
}

// writeWord packs fields into the word at slot, rejecting any value wider than
// its field and any layout that does not fit in 32 bits.
func (c *cursor) writeWord(slot int, prime uint32, fields ...field) error {
	var word uint32
	var shift uint
	for _, f := range fields {
		if f.width < 32 && f.value>>f.width != 0 {
			return &EncodingOverflowError{Band: c.band, Field: f.name, Prime: prime, Delta: int64(f.value), FieldWidth: f.width}
		}
		if shift+f.width > 32 {
			return &EncodingOverflowError{Band: c.band, Field: f.name, Prime: prime, Delta: int64(f.value), FieldWidth: 32 - shift}
		}
		word |= f.value << shift
		shift += f.width
	}
	binary.LittleEndian.PutUint32(c.buf[c.off+4*slot:], word)
	return nil
}

// checked turns a delta into a field, flagging negative or oversized values.
func (c *cursor) checked(name string, prime uint32, d int64, width uint) (field, error) {
	if d < 0 || d >= 1<<width {
		return field{}, &EncodingOverflowError{Band: c.band, Field: name, Prime: prime, Delta: d, FieldWidth: width}
	}
	return field{name: name, value: uint32(d), width: width}, nil
}

func (c *cursor) advance(n int) { c.off += n }
