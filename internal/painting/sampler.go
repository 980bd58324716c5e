package painting

import "fmt"

// CameraContribution is what one camera adds to the fusion: its visibility
// mask and, for each visible point, the sampled score vector.
type CameraContribution struct {
	Camera  int
	Visible []bool
	// Scores[i] is nil for points the camera does not see.
	Scores [][]float32
}

// SampleScores looks up the nearest (floored) pixel of every visible point
// in the camera's score map. No interpolation is done. An index outside the
// map is an internal invariant violation and aborts with
// ErrScoreMapIndexOutOfRange.
func SampleScores(view CameraView, scores *ClassScoreMap) (CameraContribution, error) {
	contrib := CameraContribution{
		Camera:  view.Camera,
		Visible: view.Visible,
		Scores:  make([][]float32, len(view.Visible)),
	}
	for i, vis := range view.Visible {
		if !vis {
			continue
		}
		px := view.Pixels[i]
		s, err := scores.At(px.V, px.U)
		if err != nil {
			return CameraContribution{}, fmt.Errorf("camera %d point %d: %w", view.Camera, i, err)
		}
		contrib.Scores[i] = s
	}
	return contrib, nil
}
