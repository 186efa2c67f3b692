package gpusieve

import "errors"

// ErrNotInitialized is returned by per-exponent, per-class and per-segment
// operations called before Init.
var ErrNotInitialized = errors.New("gpusieve: not initialized")

// ErrNoExponent is returned by InitClass before any InitExponent.
var ErrNoExponent = errors.New("gpusieve: no exponent set")

// IsNotInitialized reports whether err indicates a missing Init.
func IsNotInitialized(err error) bool { return errors.Is(err, ErrNotInitialized) }

// stageError tags a failure with the setup stage it came from.
type stageError struct {
	stage string
	err   error
}

func (e stageError) Error() string { return "gpusieve: " + e.stage + ": " + e.err.Error() }

func (e stageError) Unwrap() error { return e.err }

func errStage(stage string, err error) error { return stageError{stage: stage, err: err} }

// Stage returns the setup stage err failed in, or "" when err is not a stage error.
func Stage(err error) string {
	var se stageError
	if errors.As(err, &se) {
		return se.stage
	}
	return ""
}
