package painting

// CameraPoint is a LiDAR return expressed in a camera frame. Intensity is
// carried through unchanged; it never takes part in the matrix product.
type CameraPoint struct {
	X, Y, Z   float64
	Intensity float32
}

// TransformToCamera maps p into the camera frame described by extrinsic,
// using only the homogeneous (x, y, z, 1) part of the point.
func TransformToCamera(p Point, extrinsic Matrix4) CameraPoint {
	x, y, z, _ := extrinsic.Apply(float64(p.X), float64(p.Y), float64(p.Z))
	return CameraPoint{X: x, Y: y, Z: z, Intensity: p.Intensity}
}

// ToCameraFrame transforms every point. The input slice is not modified.
func ToCameraFrame(points []Point, extrinsic Matrix4) []CameraPoint {
	out := make([]CameraPoint, len(points))
	for i, p := range points {
		out[i] = TransformToCamera(p, extrinsic)
	}
	return out
}
