// Package segmentation turns raw segmentation network logits into painting
// class scores.
package segmentation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/pointpainting/internal/painting"
	"github.com/banshee-data/pointpainting/internal/painting/lidarfile"
)

// CityscapesChannels is the number of logit channels of a Cityscapes model.
const CityscapesChannels = 19

// CityscapesGroups maps the Cityscapes channels onto the default painting
// classes: background (road through sky), bicycle, vehicle (car, truck,
// bus, train), person, rider and motorcycle.
func CityscapesGroups() [][]int {
	return [][]int{
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		{18},
		{13, 14, 15, 16},
		{11},
		{12},
		{17},
	}
}

// Remapper applies a per-pixel softmax over the logit channels and sums the
// probabilities of each group into one class score.
type Remapper struct {
	groups [][]int
	// minChannels is one past the highest channel any group references.
	minChannels int
}

// NewRemapper validates groups. Channels may appear in at most one group;
// channels in no group still take part in the softmax but are otherwise
// dropped.
func NewRemapper(groups [][]int) (*Remapper, error) {
	if len(groups) == 0 {
		return nil, fmt.Errorf("no class groups")
	}
	used := make(map[int]int)
	cp := make([][]int, len(groups))
	minChannels := 0
	for k, g := range groups {
		if len(g) == 0 {
			return nil, fmt.Errorf("class %d has no channels", k)
		}
		for _, ch := range g {
			if ch < 0 {
				return nil, fmt.Errorf("class %d references negative channel %d", k, ch)
			}
			if prev, ok := used[ch]; ok {
				return nil, fmt.Errorf("channel %d assigned to classes %d and %d", ch, prev, k)
			}
			used[ch] = k
			if ch+1 > minChannels {
				minChannels = ch + 1
			}
		}
		cp[k] = append([]int(nil), g...)
	}
	return &Remapper{groups: cp, minChannels: minChannels}, nil
}

// NumClasses returns the number of output classes.
func (r *Remapper) NumClasses() int {
	return len(r.groups)
}

// Remap converts (C, H, W) logits into an (H, W, K) score map.
func (r *Remapper) Remap(l *lidarfile.Logits) (*painting.ClassScoreMap, error) {
	if l.Channels < r.minChannels {
		return nil, fmt.Errorf("%w: logits have %d channels, class groups need %d",
			painting.ErrMalformedScoreMap, l.Channels, r.minChannels)
	}
	plane := l.Height * l.Width
	if len(l.Data) != l.Channels*plane {
		return nil, fmt.Errorf("%w: logits data length %d does not match (%d, %d, %d)",
			painting.ErrMalformedScoreMap, len(l.Data), l.Channels, l.Height, l.Width)
	}
	out, err := painting.NewClassScoreMap(l.Height, l.Width, len(r.groups), nil)
	if err != nil {
		return nil, err
	}

	pixel := make([]float64, l.Channels)
	scores := make([]float32, len(r.groups))
	for v := 0; v < l.Height; v++ {
		for u := 0; u < l.Width; u++ {
			idx := v*l.Width + u
			for c := range pixel {
				pixel[c] = float64(l.Data[c*plane+idx])
			}
			softmax(pixel)
			for k, g := range r.groups {
				var s float64
				for _, ch := range g {
					s += pixel[ch]
				}
				scores[k] = float32(s)
			}
			out.Set(v, u, scores)
		}
	}
	return out, nil
}

// softmax replaces x with its softmax in place.
func softmax(x []float64) {
	lse := floats.LogSumExp(x)
	for i, v := range x {
		x[i] = math.Exp(v - lse)
	}
}
