package painting

import (
	"gonum.org/v1/gonum/mat"
)

// ProjectedPoint is the floating pixel position of a point in one camera,
// before visibility filtering and truncation. Depth is the third
// homogeneous coordinate used for the perspective division.
type ProjectedPoint struct {
	U, V  float64
	Depth float64
}

// Projector maps camera-frame points to pixels through
// projection · rectification.
type Projector struct {
	rectification Matrix4
	projection    Matrix4
}

// NewProjector returns a projector for one camera.
func NewProjector(rectification, projection Matrix4) *Projector {
	return &Projector{rectification: rectification, projection: projection}
}

// ProjectAll projects a batch of points. Points are stacked into a 4xN
// homogeneous matrix and pushed through rectification and projection as
// two dense products.
func (p *Projector) ProjectAll(points []CameraPoint) []ProjectedPoint {
	n := len(points)
	if n == 0 {
		return nil
	}

	homog := mat.NewDense(4, n, nil)
	for i, cp := range points {
		homog.Set(0, i, cp.X)
		homog.Set(1, i, cp.Y)
		homog.Set(2, i, cp.Z)
		homog.Set(3, i, 1)
	}

	var rectified, pixels mat.Dense
	rectified.Mul(denseOf(p.rectification), homog)
	pixels.Mul(denseOf(p.projection), &rectified)

	out := make([]ProjectedPoint, n)
	for i := range out {
		d := pixels.At(2, i)
		out[i] = ProjectedPoint{
			U:     pixels.At(0, i) / d,
			V:     pixels.At(1, i) / d,
			Depth: d,
		}
	}
	return out
}

func denseOf(m Matrix4) *mat.Dense {
	data := make([]float64, len(m))
	copy(data, m[:])
	return mat.NewDense(4, 4, data)
}
