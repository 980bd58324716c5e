package painting

import (
	"fmt"
	"math"
)

// Matrix4 is a 4x4 row-major homogeneous matrix:
// m00,m01,m02,m03, m10,...,m33.
type Matrix4 [16]float64

// Identity4 is the 4x4 identity matrix.
var Identity4 = Matrix4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// homogeneousTolerance bounds how far the padding entries may drift from
// [0 0 0 1] before a matrix is rejected.
const homogeneousTolerance = 1e-9

// NewMatrix4 builds a homogeneous matrix from row-major data. Accepted
// shapes are 4x4 (used as is), 3x4 (a [0 0 0 1] row is appended) and 3x3
// (padded into the upper-left block with a unit bottom-right entry).
func NewMatrix4(rows, cols int, data []float64) (Matrix4, error) {
	var m Matrix4
	if len(data) != rows*cols {
		return m, fmt.Errorf("%w: %dx%d matrix needs %d values, got %d",
			ErrMalformedCalibration, rows, cols, rows*cols, len(data))
	}
	switch {
	case rows == 4 && cols == 4:
		copy(m[:], data)
	case rows == 3 && cols == 4:
		copy(m[:12], data)
		m[15] = 1
	case rows == 3 && cols == 3:
		for r := 0; r < 3; r++ {
			copy(m[r*4:r*4+3], data[r*3:r*3+3])
		}
		m[15] = 1
	default:
		return m, fmt.Errorf("%w: unsupported matrix shape %dx%d", ErrMalformedCalibration, rows, cols)
	}
	if !m.IsFinite() {
		return m, fmt.Errorf("%w: matrix contains non-finite values", ErrMalformedCalibration)
	}
	return m, nil
}

// At returns the entry at row r, column c.
func (m Matrix4) At(r, c int) float64 {
	return m[r*4+c]
}

// Apply multiplies m by the homogeneous column vector (x, y, z, 1).
func (m Matrix4) Apply(x, y, z float64) (ox, oy, oz, ow float64) {
	ox = m[0]*x + m[1]*y + m[2]*z + m[3]
	oy = m[4]*x + m[5]*y + m[6]*z + m[7]
	oz = m[8]*x + m[9]*y + m[10]*z + m[11]
	ow = m[12]*x + m[13]*y + m[14]*z + m[15]
	return
}

// IsFinite reports whether every entry is a finite number.
func (m Matrix4) IsFinite() bool {
	for _, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// HasHomogeneousRow reports whether the last row is [0 0 0 1].
func (m Matrix4) HasHomogeneousRow() bool {
	return nearly(m[12], 0) && nearly(m[13], 0) && nearly(m[14], 0) && nearly(m[15], 1)
}

// HasHomogeneousColumn reports whether the last column is [0 0 0 1]^T.
func (m Matrix4) HasHomogeneousColumn() bool {
	return nearly(m[3], 0) && nearly(m[7], 0) && nearly(m[11], 0) && nearly(m[15], 1)
}

func nearly(a, b float64) bool {
	return math.Abs(a-b) <= homogeneousTolerance
}

// CameraCalibration holds the per-camera matrices.
type CameraCalibration struct {
	// Extrinsic maps LiDAR-frame points into this camera's frame.
	Extrinsic Matrix4
	// Projection maps rectified camera coordinates to homogeneous pixels.
	Projection Matrix4
}

// Calibration is the calibration model for one rig: one entry per camera,
// indexed 0..N-1, plus the rectification shared by all cameras.
type Calibration struct {
	Cameras       []CameraCalibration
	Rectification Matrix4
}

// NumCameras returns the number of calibrated cameras.
func (c *Calibration) NumCameras() int {
	if c == nil {
		return 0
	}
	return len(c.Cameras)
}

// Camera returns the calibration for camera i.
func (c *Calibration) Camera(i int) (CameraCalibration, error) {
	if i < 0 || i >= c.NumCameras() {
		return CameraCalibration{}, fmt.Errorf("%w: camera %d not in [0, %d)", ErrMalformedCalibration, i, c.NumCameras())
	}
	return c.Cameras[i], nil
}

// Validate checks that every matrix is finite and in homogeneous form.
// Projection matrices may carry a translation column (stereo baseline), so
// only their last row is checked. The rectification must be a padded 3x3.
func (c *Calibration) Validate() error {
	if c == nil || len(c.Cameras) == 0 {
		return fmt.Errorf("%w: no cameras", ErrMalformedCalibration)
	}
	if !c.Rectification.IsFinite() {
		return fmt.Errorf("%w: rectification contains non-finite values", ErrMalformedCalibration)
	}
	if !c.Rectification.HasHomogeneousRow() || !c.Rectification.HasHomogeneousColumn() {
		return fmt.Errorf("%w: rectification is not a padded 3x3 rotation", ErrMalformedCalibration)
	}
	for i, cam := range c.Cameras {
		if !cam.Extrinsic.IsFinite() || !cam.Projection.IsFinite() {
			return fmt.Errorf("%w: camera %d has non-finite values", ErrMalformedCalibration, i)
		}
		if !cam.Extrinsic.HasHomogeneousRow() {
			return fmt.Errorf("%w: camera %d extrinsic last row is not [0 0 0 1]", ErrMalformedCalibration, i)
		}
		if !cam.Projection.HasHomogeneousRow() {
			return fmt.Errorf("%w: camera %d projection last row is not [0 0 0 1]", ErrMalformedCalibration, i)
		}
	}
	return nil
}
