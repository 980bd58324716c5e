package painting

import "errors"

var (
	// ErrMalformedCalibration is returned when a matrix has the wrong shape,
	// contains a non-finite value, is not in homogeneous form, or when the
	// camera count does not match the other frame inputs.
	ErrMalformedCalibration = errors.New("malformed calibration")

	// ErrMalformedScoreMap is returned for score maps with invalid
	// dimensions, a class count that differs from the painter's, or a data
	// buffer of the wrong length.
	ErrMalformedScoreMap = errors.New("malformed score map")

	// ErrScoreMapIndexOutOfRange signals a pixel index outside the score
	// map. The visibility filter makes this unreachable; seeing it means the
	// bound check is broken.
	ErrScoreMapIndexOutOfRange = errors.New("score map index out of range")

	// ErrInvalidTopology is returned for overlap pairs that reference
	// unknown cameras, pair a camera with itself, or repeat a pair.
	ErrInvalidTopology = errors.New("invalid camera overlap topology")
)
