// Package lidarfile reads raw LiDAR frames and score maps and writes
// painted clouds.
//
// Raw frames are flat little-endian float32 buffers with a fixed number of
// channels per point. Score maps, logits and painted clouds use the NumPy
// .npy format.
package lidarfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/pointpainting/internal/painting"
)

const (
	float32Size = 4
	// minChannels is x, y, z and intensity.
	minChannels = 4
)

// ReadPoints decodes a raw frame with channels float32 values per point.
// Only the first painting.GeometryChannels channels are kept.
func ReadPoints(r io.Reader, channels int) ([]painting.Point, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read point frame: %w", err)
	}
	return decodePoints(data, channels)
}

func decodePoints(data []byte, channels int) ([]painting.Point, error) {
	if channels < minChannels {
		return nil, fmt.Errorf("point frames need at least %d channels, got %d", minChannels, channels)
	}
	stride := channels * float32Size
	if len(data)%stride != 0 {
		return nil, fmt.Errorf("point frame of %d bytes is not a multiple of %d channels", len(data), channels)
	}
	n := len(data) / stride
	points := make([]painting.Point, n)
	row := make([]float32, channels)
	for i := 0; i < n; i++ {
		base := i * stride
		for c := 0; c < channels; c++ {
			off := base + c*float32Size
			row[c] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+float32Size]))
		}
		points[i] = painting.PointFromRow(row)
	}
	return points, nil
}
