package painting

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// pinhole returns a unit-focal projection centred at (cx, cy):
// u = x/z + cx, v = y/z + cy, depth = z.
func pinhole(cx, cy float64) Matrix4 {
	return Matrix4{
		1, 0, cx, 0,
		0, 1, cy, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// identityRig builds a calibration where every camera shares the LiDAR frame
// and sees through pinhole(5, 5).
func identityRig(cams int) *Calibration {
	cal := &Calibration{Rectification: Identity4}
	for i := 0; i < cams; i++ {
		cal.Cameras = append(cal.Cameras, CameraCalibration{Extrinsic: Identity4, Projection: pinhole(5, 5)})
	}
	return cal
}

// oneHot returns a k-class vector with scale at class hot.
func oneHot(k, hot int, scale float32) []float32 {
	v := make([]float32, k)
	v[hot] = scale
	return v
}

// uniformMap builds an h x w map with every pixel set to scores.
func uniformMap(t *testing.T, h, w int, scores []float32) *ClassScoreMap {
	t.Helper()
	m, err := NewClassScoreMap(h, w, len(scores), nil)
	require.NoError(t, err)
	m.Fill(scores)
	return m
}

func mustPainter(t *testing.T, opts Options) *Painter {
	t.Helper()
	p, err := NewPainter(opts)
	require.NoError(t, err)
	return p
}
