package painting

import (
	"fmt"
	"sort"
)

// OverlapHalving is the factor applied to a point's accumulated scores for
// every declared overlap pair that sees it.
const OverlapHalving = 0.5

// OverlapPair declares two cameras whose fields of view overlap. A point
// seen by both has its accumulated scores halved once for this pair.
type OverlapPair struct {
	A int `json:"a"`
	B int `json:"b"`
}

func (p OverlapPair) String() string {
	return fmt.Sprintf("(%d,%d)", p.A, p.B)
}

// Normalized returns the pair with A < B.
func (p OverlapPair) Normalized() OverlapPair {
	if p.A > p.B {
		return OverlapPair{A: p.B, B: p.A}
	}
	return p
}

// Topology describes a camera rig: how many cameras it has and which pairs
// overlap. Only the declared pairs are halved; other co-visible pairs
// simply add.
type Topology struct {
	NumCameras int
	Pairs      []OverlapPair
}

// DefaultTopology is the five-camera rig (front, front-left, front-right,
// side-left, side-right) with its four physical overlaps.
func DefaultTopology() Topology {
	return Topology{
		NumCameras: 5,
		Pairs: []OverlapPair{
			{A: 0, B: 1},
			{A: 0, B: 2},
			{A: 1, B: 3},
			{A: 2, B: 4},
		},
	}
}

// NewTopology validates and returns a topology.
func NewTopology(numCameras int, pairs []OverlapPair) (Topology, error) {
	t := Topology{NumCameras: numCameras, Pairs: append([]OverlapPair(nil), pairs...)}
	if err := t.Validate(); err != nil {
		return Topology{}, err
	}
	return t, nil
}

// Validate checks camera indices and rejects self-pairs and duplicates;
// (a,b) and (b,a) count as the same pair.
func (t Topology) Validate() error {
	if t.NumCameras <= 0 {
		return fmt.Errorf("%w: camera count must be positive, got %d", ErrInvalidTopology, t.NumCameras)
	}
	seen := make(map[OverlapPair]bool, len(t.Pairs))
	for _, p := range t.Pairs {
		if p.A < 0 || p.A >= t.NumCameras || p.B < 0 || p.B >= t.NumCameras {
			return fmt.Errorf("%w: pair %s references a camera outside [0, %d)", ErrInvalidTopology, p, t.NumCameras)
		}
		if p.A == p.B {
			return fmt.Errorf("%w: pair %s pairs a camera with itself", ErrInvalidTopology, p)
		}
		n := p.Normalized()
		if seen[n] {
			return fmt.Errorf("%w: pair %s declared twice", ErrInvalidTopology, p)
		}
		seen[n] = true
	}
	return nil
}

// SortedPairs returns the pairs normalized (A < B) and sorted, for stable
// reporting.
func (t Topology) SortedPairs() []OverlapPair {
	out := make([]OverlapPair, len(t.Pairs))
	for i, p := range t.Pairs {
		out[i] = p.Normalized()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// FusionResult holds the per-point fused scores. Scores[i] is nil when
// point i was not retained.
type FusionResult struct {
	Scores   [][]float64
	Retained []bool
	// OverlapHits counts, per entry of Topology.Pairs, the points halved
	// for that pair.
	OverlapHits []int
	// RetainedCount is the number of points visible in at least one camera.
	RetainedCount int
}

// FuseScores merges the contributions of all cameras. For each point the
// visible cameras' vectors are summed, then the sum is halved once for
// every declared pair whose two cameras both see the point. A point is
// retained iff at least one camera sees it.
//
// contribs must hold exactly one entry per camera of t, in camera order,
// each covering numPoints points.
func FuseScores(numPoints, numClasses int, t Topology, contribs []CameraContribution) (FusionResult, error) {
	if len(contribs) != t.NumCameras {
		return FusionResult{}, fmt.Errorf("%w: %d camera contributions for a %d-camera topology",
			ErrInvalidTopology, len(contribs), t.NumCameras)
	}
	for c, contrib := range contribs {
		if len(contrib.Visible) != numPoints || len(contrib.Scores) != numPoints {
			return FusionResult{}, fmt.Errorf("camera %d contribution covers %d points, frame has %d",
				c, len(contrib.Visible), numPoints)
		}
	}

	res := FusionResult{
		Scores:      make([][]float64, numPoints),
		Retained:    make([]bool, numPoints),
		OverlapHits: make([]int, len(t.Pairs)),
	}

	for i := 0; i < numPoints; i++ {
		var acc []float64
		for _, contrib := range contribs {
			if !contrib.Visible[i] {
				continue
			}
			if acc == nil {
				acc = make([]float64, numClasses)
			}
			s := contrib.Scores[i]
			if len(s) != numClasses {
				return FusionResult{}, fmt.Errorf("%w: camera %d sampled %d classes, want %d",
					ErrMalformedScoreMap, contrib.Camera, len(s), numClasses)
			}
			for k, v := range s {
				acc[k] += float64(v)
			}
		}
		if acc == nil {
			continue
		}

		for pi, pair := range t.Pairs {
			if contribs[pair.A].Visible[i] && contribs[pair.B].Visible[i] {
				for k := range acc {
					acc[k] *= OverlapHalving
				}
				res.OverlapHits[pi]++
			}
		}

		res.Scores[i] = acc
		res.Retained[i] = true
		res.RetainedCount++
	}
	return res, nil
}
