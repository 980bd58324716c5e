package lidarfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// npy.Write derives the array shape from the Go value, which only yields
// (N,) for slices and (R, C) for matrices. N-dimensional float32 arrays are
// written with an explicit version 1.0 header instead.

var npyMagic = []byte("\x93NUMPY")

const npyHeaderAlign = 64

// WriteFloat32NPY writes data as a C-ordered float32 array of the given
// shape.
func WriteFloat32NPY(w io.Writer, shape []int, data []float32) error {
	n := 1
	dims := make([]string, len(shape))
	for i, d := range shape {
		n *= d
		dims[i] = strconv.Itoa(d)
	}
	if n != len(data) {
		return fmt.Errorf("shape %v needs %d values, got %d", shape, n, len(data))
	}
	shapeText := strings.Join(dims, ", ")
	if len(shape) == 1 {
		shapeText += ","
	}
	dict := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%s), }", shapeText)

	// magic + version + uint16 length + dict + padding + newline
	pre := len(npyMagic) + 2 + 2
	total := pre + len(dict) + 1
	if rem := total % npyHeaderAlign; rem != 0 {
		dict += strings.Repeat(" ", npyHeaderAlign-rem)
	}
	dict += "\n"

	var buf bytes.Buffer
	buf.Grow(pre + len(dict) + 4*len(data))
	buf.Write(npyMagic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(dict)))
	buf.WriteString(dict)
	var word [4]byte
	for _, v := range data {
		binary.LittleEndian.PutUint32(word[:], math.Float32bits(v))
		buf.Write(word[:])
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write npy array: %w", err)
	}
	return nil
}
