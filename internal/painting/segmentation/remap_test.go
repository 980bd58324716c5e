package segmentation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pointpainting/internal/painting"
	"github.com/banshee-data/pointpainting/internal/painting/lidarfile"
)

func TestNewRemapper_Errors(t *testing.T) {
	tests := []struct {
		name   string
		groups [][]int
	}{
		{name: "no groups", groups: nil},
		{name: "empty group", groups: [][]int{{0}, {}}},
		{name: "negative channel", groups: [][]int{{0}, {-1}}},
		{name: "shared channel", groups: [][]int{{0, 1}, {1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRemapper(tt.groups)
			assert.Error(t, err)
		})
	}
}

func TestRemap_Cityscapes(t *testing.T) {
	r, err := NewRemapper(CityscapesGroups())
	require.NoError(t, err)
	require.Equal(t, painting.DefaultNumClasses, r.NumClasses())

	// Two pixels: the first strongly "car" (13), the second uniform.
	l := &lidarfile.Logits{Channels: CityscapesChannels, Height: 1, Width: 2, Data: make([]float32, CityscapesChannels*2)}
	l.Data[13*2+0] = 50

	m, err := r.Remap(l)
	require.NoError(t, err)

	car, err := m.At(0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, car[2], 1e-6)
	assert.InDelta(t, 0.0, car[0], 1e-6)

	uniform, err := m.At(0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 11.0/19, uniform[0], 1e-6)
	assert.InDelta(t, 1.0/19, uniform[1], 1e-6)
	assert.InDelta(t, 4.0/19, uniform[2], 1e-6)
	assert.InDelta(t, 1.0/19, uniform[3], 1e-6)

	var sum float64
	for _, s := range uniform {
		sum += float64(s)
	}
	assert.InDelta(t, 1.0, sum, 1e-6, "every Cityscapes channel is assigned")
}

func TestRemap_LargeLogitsStayFinite(t *testing.T) {
	r, err := NewRemapper([][]int{{0}, {1}})
	require.NoError(t, err)

	m, err := r.Remap(&lidarfile.Logits{Channels: 2, Height: 1, Width: 1, Data: []float32{1000, 999}})
	require.NoError(t, err)
	s, err := m.At(0, 0)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(float64(s[0])))
	assert.InDelta(t, 1/(1+math.Exp(-1)), s[0], 1e-6)
}

func TestRemap_Errors(t *testing.T) {
	r, err := NewRemapper([][]int{{0}, {1}})
	require.NoError(t, err)

	_, err = r.Remap(&lidarfile.Logits{Channels: 1, Height: 1, Width: 1, Data: make([]float32, 1)})
	assert.ErrorIs(t, err, painting.ErrMalformedScoreMap)

	_, err = r.Remap(&lidarfile.Logits{Channels: 2, Height: 2, Width: 2, Data: make([]float32, 4)})
	assert.ErrorIs(t, err, painting.ErrMalformedScoreMap)
}

func TestRemap_UnassignedChannelsJoinSoftmax(t *testing.T) {
	r, err := NewRemapper([][]int{{0}})
	require.NoError(t, err)

	m, err := r.Remap(&lidarfile.Logits{Channels: 2, Height: 1, Width: 1, Data: []float32{0, 0}})
	require.NoError(t, err)
	s, err := m.At(0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, s[0], 1e-6)
}
