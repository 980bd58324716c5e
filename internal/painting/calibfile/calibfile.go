// Package calibfile parses the plain-text calibration files that ship with
// each LiDAR frame and turns them into a painting.Calibration.
//
// Each non-empty line is "key: v0 v1 ...". Projection matrices P<i> and
// extrinsics Tr_velo_to_cam_<i> carry 12 values (3x4), the shared
// rectification R0_rect carries 9 (3x3). Lines whose values are not all
// numeric (dates, comments) are ignored.
package calibfile

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/pointpainting/internal/painting"
)

// Key names used in calibration files.
const (
	RectificationKey   = "R0_rect"
	projectionPrefix   = "P"
	extrinsicPrefix    = "Tr_velo_to_cam_"
	legacyExtrinsicKey = "Tr_velo_to_cam"
)

const maxLineBytes = 64 * 1024

// ProjectionKey returns the key of camera i's projection matrix.
func ProjectionKey(i int) string { return projectionPrefix + strconv.Itoa(i) }

// ExtrinsicKey returns the key of camera i's LiDAR-to-camera transform.
func ExtrinsicKey(i int) string { return extrinsicPrefix + strconv.Itoa(i) }

// File holds the numeric entries of a calibration file by key.
type File map[string][]float64

// Parse reads a calibration file.
func Parse(r io.Reader) (File, error) {
	f := make(File)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: missing ':' separator", lineNo)
		}
		values, ok := parseFloats(value)
		if !ok {
			continue
		}
		f[strings.TrimSpace(key)] = values
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read calibration: %w", err)
	}
	return f, nil
}

func parseFloats(s string) ([]float64, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, false
	}
	out := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// Matrix returns the entry for key as a homogeneous matrix of the given
// stored shape.
func (f File) Matrix(key string, rows, cols int) (painting.Matrix4, error) {
	values, ok := f[key]
	if !ok {
		return painting.Matrix4{}, fmt.Errorf("%w: missing %s", painting.ErrMalformedCalibration, key)
	}
	m, err := painting.NewMatrix4(rows, cols, values)
	if err != nil {
		return painting.Matrix4{}, fmt.Errorf("%s: %w", key, err)
	}
	return m, nil
}

// Calibration assembles a validated calibration for numCameras cameras.
// A single-camera file may use the unsuffixed Tr_velo_to_cam key.
func (f File) Calibration(numCameras int) (*painting.Calibration, error) {
	if numCameras <= 0 {
		return nil, fmt.Errorf("%w: camera count must be positive, got %d", painting.ErrMalformedCalibration, numCameras)
	}
	rect, err := f.Matrix(RectificationKey, 3, 3)
	if err != nil {
		return nil, err
	}

	cal := &painting.Calibration{
		Cameras:       make([]painting.CameraCalibration, numCameras),
		Rectification: rect,
	}
	for i := 0; i < numCameras; i++ {
		proj, err := f.Matrix(ProjectionKey(i), 3, 4)
		if err != nil {
			return nil, err
		}
		extKey := ExtrinsicKey(i)
		if _, ok := f[extKey]; !ok && i == 0 && numCameras == 1 {
			extKey = legacyExtrinsicKey
		}
		ext, err := f.Matrix(extKey, 3, 4)
		if err != nil {
			return nil, err
		}
		cal.Cameras[i] = painting.CameraCalibration{Extrinsic: ext, Projection: proj}
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return cal, nil
}

// Load parses r and builds the calibration in one step.
func Load(r io.Reader, numCameras int) (*painting.Calibration, error) {
	f, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return f.Calibration(numCameras)
}
