package painting

import "math"

// Pixel is an integer pixel index: U is the column, V the row.
type Pixel struct {
	U, V int
}

// Visible reports whether a projected point lands strictly inside a
// width x height image: 0 < u < width and 0 < v < height. Points exactly on
// an edge are excluded. Non-finite coordinates never pass.
//
// With rejectBehind set, points whose depth is not positive are also
// excluded; without it the perspective division result is trusted as is.
func Visible(pp ProjectedPoint, width, height int, rejectBehind bool) bool {
	if rejectBehind && !(pp.Depth > 0) {
		return false
	}
	return inBounds(pp, width, height)
}

func inBounds(pp ProjectedPoint, width, height int) bool {
	return 0 < pp.U && pp.U < float64(width) &&
		0 < pp.V && pp.V < float64(height)
}

// PixelIndex floors a projected point to its pixel. For points that passed
// Visible the result lies in [0, width) x [0, height).
func PixelIndex(pp ProjectedPoint) Pixel {
	return Pixel{U: int(math.Floor(pp.U)), V: int(math.Floor(pp.V))}
}

// CameraView is the visibility outcome of one camera over a whole frame.
// Visible and Pixels are indexed like the frame's points; Pixels entries for
// invisible points are zero and must not be used.
type CameraView struct {
	Camera       int
	Visible      []bool
	Pixels       []Pixel
	VisibleCount int
	// BehindCamera counts points that fell inside the image bounds but had
	// a non-positive depth. They are dropped when rejectBehind is set and
	// kept otherwise.
	BehindCamera int
}

// VisibilityMask filters projected points against the image bounds and
// truncates the survivors to pixel indices.
func VisibilityMask(camera int, projected []ProjectedPoint, width, height int, rejectBehind bool) CameraView {
	view := CameraView{
		Camera:  camera,
		Visible: make([]bool, len(projected)),
		Pixels:  make([]Pixel, len(projected)),
	}
	for i, pp := range projected {
		if !Visible(pp, width, height, false) {
			continue
		}
		if !(pp.Depth > 0) {
			view.BehindCamera++
			if rejectBehind {
				continue
			}
		}
		view.Visible[i] = true
		view.Pixels[i] = PixelIndex(pp)
		view.VisibleCount++
	}
	return view
}
