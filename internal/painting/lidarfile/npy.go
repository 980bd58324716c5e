package lidarfile

import (
	"fmt"
	"io"

	"github.com/sbinet/npyio/npy"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/pointpainting/internal/painting"
)

// WritePaintedNPY writes a painted cloud as a float64 (N, 5+K) array. An
// empty cloud is written as a zero-length one-dimensional array.
func WritePaintedNPY(w io.Writer, points []painting.AugmentedPoint) error {
	if len(points) == 0 {
		if err := npy.Write(w, []float64{}); err != nil {
			return fmt.Errorf("write empty painted cloud: %w", err)
		}
		return nil
	}

	cols := painting.GeometryChannels + len(points[0].Scores)
	data := make([]float64, 0, len(points)*cols)
	for i, p := range points {
		row := p.Row()
		if len(row) != cols {
			return fmt.Errorf("painted point %d has %d channels, want %d", i, len(row), cols)
		}
		data = append(data, row...)
	}
	if err := npy.Write(w, mat.NewDense(len(points), cols, data)); err != nil {
		return fmt.Errorf("write painted cloud: %w", err)
	}
	return nil
}

// ReadPaintedNPY reads a cloud written by WritePaintedNPY. numClasses is
// used to validate the column count.
func ReadPaintedNPY(r io.Reader, numClasses int) ([]painting.AugmentedPoint, error) {
	hdr, data, err := readFloat(r)
	if err != nil {
		return nil, err
	}
	shape := hdr.Descr.Shape
	if len(shape) == 1 && shape[0] == 0 {
		return []painting.AugmentedPoint{}, nil
	}
	cols := painting.GeometryChannels + numClasses
	if len(shape) != 2 || shape[1] != cols {
		return nil, fmt.Errorf("painted cloud has shape %v, want (N, %d)", shape, cols)
	}

	out := make([]painting.AugmentedPoint, shape[0])
	row32 := make([]float32, painting.GeometryChannels)
	for i := range out {
		row := data[i*cols : (i+1)*cols]
		for c := range row32 {
			row32[c] = float32(row[c])
		}
		out[i] = painting.AugmentedPoint{
			Point:  painting.PointFromRow(row32),
			Scores: append([]float64(nil), row[painting.GeometryChannels:]...),
		}
	}
	return out, nil
}

// ReadScoreMapNPY reads a (H, W, K) class score array.
func ReadScoreMapNPY(r io.Reader) (*painting.ClassScoreMap, error) {
	hdr, data, err := readFloat32(r)
	if err != nil {
		return nil, err
	}
	shape := hdr.Descr.Shape
	if len(shape) != 3 {
		return nil, fmt.Errorf("%w: score map has shape %v, want (H, W, K)", painting.ErrMalformedScoreMap, shape)
	}
	return painting.NewClassScoreMap(shape[0], shape[1], shape[2], data)
}

// Logits is a (C, H, W) array of raw segmentation network outputs, stored
// channel-major.
type Logits struct {
	Channels int
	Height   int
	Width    int
	Data     []float32
}

// ReadLogitsNPY reads a (C, H, W) logits array.
func ReadLogitsNPY(r io.Reader) (*Logits, error) {
	hdr, data, err := readFloat32(r)
	if err != nil {
		return nil, err
	}
	shape := hdr.Descr.Shape
	if len(shape) != 3 || shape[0] <= 0 || shape[1] <= 0 || shape[2] <= 0 {
		return nil, fmt.Errorf("%w: logits have shape %v, want (C, H, W)", painting.ErrMalformedScoreMap, shape)
	}
	return &Logits{Channels: shape[0], Height: shape[1], Width: shape[2], Data: data}, nil
}

// WriteScoreMapNPY writes m as a float32 (H, W, K) array.
func WriteScoreMapNPY(w io.Writer, m *painting.ClassScoreMap) error {
	return WriteFloat32NPY(w, []int{m.Height, m.Width, m.Classes}, m.Data)
}

// readFloat32 decodes a C-ordered float32 or float64 array into float32
// values.
func readFloat32(r io.Reader) (npy.Header, []float32, error) {
	rd, err := npy.NewReader(r)
	if err != nil {
		return npy.Header{}, nil, fmt.Errorf("read npy header: %w", err)
	}
	if rd.Header.Descr.Fortran {
		return rd.Header, nil, fmt.Errorf("fortran-ordered arrays are not supported")
	}
	switch rd.Header.Descr.Type {
	case "<f4":
		var data []float32
		if err := rd.Read(&data); err != nil {
			return rd.Header, nil, fmt.Errorf("read npy data: %w", err)
		}
		return rd.Header, data, nil
	case "<f8":
		var data []float64
		if err := rd.Read(&data); err != nil {
			return rd.Header, nil, fmt.Errorf("read npy data: %w", err)
		}
		out := make([]float32, len(data))
		for i, v := range data {
			out[i] = float32(v)
		}
		return rd.Header, out, nil
	default:
		return rd.Header, nil, fmt.Errorf("unsupported npy dtype %q", rd.Header.Descr.Type)
	}
}

// readFloat decodes a C-ordered float64 array.
func readFloat(r io.Reader) (npy.Header, []float64, error) {
	rd, err := npy.NewReader(r)
	if err != nil {
		return npy.Header{}, nil, fmt.Errorf("read npy header: %w", err)
	}
	if rd.Header.Descr.Fortran {
		return rd.Header, nil, fmt.Errorf("fortran-ordered arrays are not supported")
	}
	if rd.Header.Descr.Type != "<f8" {
		return rd.Header, nil, fmt.Errorf("unsupported npy dtype %q, want <f8", rd.Header.Descr.Type)
	}
	var data []float64
	if err := rd.Read(&data); err != nil {
		return rd.Header, nil, fmt.Errorf("read npy data: %w", err)
	}
	return rd.Header, data, nil
}
