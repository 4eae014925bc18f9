package window

import "errors"

var (
	errMismatchedLength = errors.New("window: samples and coefficients length mismatch")
	errEmptyCoeffs      = errors.New("window: empty coefficients")
	errZeroCoherentGain = errors.New("window: zero coherent gain")
	errInvalidLength    = errors.New("window: length must be > 0")
)

func validateLength(size int) error {
	if size <= 0 {
		return errInvalidLength
	}

	return nil
}
