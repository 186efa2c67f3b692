package layout

import (
	"errors"
	"fmt"
)

// EncodingOverflowError reports a value that does not fit its packed field.
// Encode never truncates; the whole build fails instead.
type EncodingOverflowError struct {
	Band       BandID
	Field      string
	Prime      uint32
	Delta      int64
	FieldWidth uint
}

func (e *EncodingOverflowError) Error() string {
	return fmt.Sprintf("layout: %s %s=%d for prime %d does not fit %d bits", e.Band, e.Field, e.Delta, e.Prime, e.FieldWidth)
}

// IsEncodingOverflow reports whether err carries an EncodingOverflowError.
func IsEncodingOverflow(err error) bool {
	var e *EncodingOverflowError
	return errors.As(err, &e)
}
