package painting

import "fmt"

// ClassScoreMap is a per-camera grid of class scores with shape
// (Height, Width, Classes), stored row-major: the scores of pixel (u, v)
// start at (v*Width+u)*Classes.
type ClassScoreMap struct {
	Height  int
	Width   int
	Classes int
	Data    []float32
}

// NewClassScoreMap wraps data as a score map after checking its shape.
// A nil data slice allocates a zeroed map.
func NewClassScoreMap(height, width, classes int, data []float32) (*ClassScoreMap, error) {
	if height <= 0 || width <= 0 || classes <= 0 {
		return nil, fmt.Errorf("%w: invalid shape (%d, %d, %d)", ErrMalformedScoreMap, height, width, classes)
	}
	n := height * width * classes
	if data == nil {
		data = make([]float32, n)
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: shape (%d, %d, %d) needs %d values, got %d",
			ErrMalformedScoreMap, height, width, classes, n, len(data))
	}
	return &ClassScoreMap{Height: height, Width: width, Classes: classes, Data: data}, nil
}

// At returns the score vector at row v, column u. The returned slice
// aliases the map's storage.
func (m *ClassScoreMap) At(v, u int) ([]float32, error) {
	if v < 0 || v >= m.Height || u < 0 || u >= m.Width {
		return nil, fmt.Errorf("%w: pixel (u=%d, v=%d) outside %dx%d map",
			ErrScoreMapIndexOutOfRange, u, v, m.Width, m.Height)
	}
	off := (v*m.Width + u) * m.Classes
	return m.Data[off : off+m.Classes : off+m.Classes], nil
}

// Set copies scores into pixel (u, v). It panics on an out-of-range pixel
// or a score vector of the wrong length.
func (m *ClassScoreMap) Set(v, u int, scores []float32) {
	dst, err := m.At(v, u)
	if err != nil {
		panic(err)
	}
	if len(scores) != m.Classes {
		panic(fmt.Sprintf("score vector has %d classes, map has %d", len(scores), m.Classes))
	}
	copy(dst, scores)
}

// Fill sets every pixel to scores.
func (m *ClassScoreMap) Fill(scores []float32) {
	for v := 0; v < m.Height; v++ {
		for u := 0; u < m.Width; u++ {
			m.Set(v, u, scores)
		}
	}
}
