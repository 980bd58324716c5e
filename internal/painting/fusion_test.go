package painting

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// contribution builds a camera contribution where the points listed in
// scores are visible with the given vectors.
func contribution(camera, n int, scores map[int][]float32) CameraContribution {
	c := CameraContribution{Camera: camera, Visible: make([]bool, n), Scores: make([][]float32, n)}
	for i, s := range scores {
		c.Visible[i] = true
		c.Scores[i] = s
	}
	return c
}

func TestFuseScores_SingleCameraAdditive(t *testing.T) {
	topo := Topology{NumCameras: 3, Pairs: []OverlapPair{{A: 0, B: 1}}}
	s := []float32{0.1, 0.2, 0.7}
	contribs := []CameraContribution{
		contribution(0, 1, nil),
		contribution(1, 1, nil),
		contribution(2, 1, map[int][]float32{0: s}),
	}

	res, err := FuseScores(1, 3, topo, contribs)
	if err != nil {
		t.Fatalf("FuseScores: %v", err)
	}
	if !res.Retained[0] {
		t.Fatal("point seen by one camera was not retained")
	}
	want := []float64{float64(s[0]), float64(s[1]), float64(s[2])}
	if diff := cmp.Diff(want, res.Scores[0]); diff != "" {
		t.Errorf("Scores mismatch (-want +got):\n%s", diff)
	}
}

func TestFuseScores_UndeclaredPairAdds(t *testing.T) {
	// Cameras 1 and 2 both see the point but are not a declared pair.
	topo := Topology{NumCameras: 3, Pairs: []OverlapPair{{A: 0, B: 1}}}
	contribs := []CameraContribution{
		contribution(0, 1, nil),
		contribution(1, 1, map[int][]float32{0: {1, 0}}),
		contribution(2, 1, map[int][]float32{0: {0, 1}}),
	}

	res, err := FuseScores(1, 2, topo, contribs)
	if err != nil {
		t.Fatalf("FuseScores: %v", err)
	}
	if diff := cmp.Diff([]float64{1, 1}, res.Scores[0]); diff != "" {
		t.Errorf("Scores mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0}, res.OverlapHits); diff != "" {
		t.Errorf("OverlapHits mismatch (-want +got):\n%s", diff)
	}
}

func TestFuseScores_MultiplicativeHalving(t *testing.T) {
	topo := Topology{NumCameras: 3, Pairs: []OverlapPair{{A: 0, B: 1}, {A: 0, B: 2}}}
	contribs := []CameraContribution{
		contribution(0, 1, map[int][]float32{0: {1, 0}}),
		contribution(1, 1, map[int][]float32{0: {1, 0}}),
		contribution(2, 1, map[int][]float32{0: {0, 2}}),
	}

	res, err := FuseScores(1, 2, topo, contribs)
	if err != nil {
		t.Fatalf("FuseScores: %v", err)
	}
	// (s0 + s1 + s2) * 0.5 * 0.5
	if diff := cmp.Diff([]float64{0.5, 0.5}, res.Scores[0]); diff != "" {
		t.Errorf("Scores mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 1}, res.OverlapHits); diff != "" {
		t.Errorf("OverlapHits mismatch (-want +got):\n%s", diff)
	}
}

func TestFuseScores_Retention(t *testing.T) {
	topo := Topology{NumCameras: 2}
	contribs := []CameraContribution{
		contribution(0, 4, map[int][]float32{0: {1}, 2: {1}}),
		contribution(1, 4, map[int][]float32{2: {1}}),
	}

	res, err := FuseScores(4, 1, topo, contribs)
	if err != nil {
		t.Fatalf("FuseScores: %v", err)
	}
	if diff := cmp.Diff([]bool{true, false, true, false}, res.Retained); diff != "" {
		t.Errorf("Retained mismatch (-want +got):\n%s", diff)
	}
	if res.RetainedCount != 2 {
		t.Errorf("RetainedCount = %d, want 2", res.RetainedCount)
	}
	if res.Scores[1] != nil || res.Scores[3] != nil {
		t.Errorf("unretained points carry scores: %v, %v", res.Scores[1], res.Scores[3])
	}
}

func TestFuseScores_Errors(t *testing.T) {
	topo := Topology{NumCameras: 2}

	if _, err := FuseScores(1, 1, topo, []CameraContribution{contribution(0, 1, nil)}); !errors.Is(err, ErrInvalidTopology) {
		t.Errorf("missing camera: got %v, want ErrInvalidTopology", err)
	}

	if _, err := FuseScores(2, 1, topo, []CameraContribution{contribution(0, 1, nil), contribution(1, 1, nil)}); err == nil {
		t.Error("point count mismatch: expected error, got nil")
	}

	_, err := FuseScores(1, 2, topo, []CameraContribution{
		contribution(0, 1, map[int][]float32{0: {1, 2, 3}}),
		contribution(1, 1, nil),
	})
	if !errors.Is(err, ErrMalformedScoreMap) {
		t.Errorf("wrong class count: got %v, want ErrMalformedScoreMap", err)
	}
}

func TestTopology_Validate(t *testing.T) {
	tests := []struct {
		name    string
		topo    Topology
		wantErr bool
	}{
		{name: "default rig", topo: DefaultTopology()},
		{name: "no pairs", topo: Topology{NumCameras: 1}},
		{name: "no cameras", topo: Topology{NumCameras: 0}, wantErr: true},
		{name: "out of range", topo: Topology{NumCameras: 2, Pairs: []OverlapPair{{A: 0, B: 2}}}, wantErr: true},
		{name: "negative", topo: Topology{NumCameras: 2, Pairs: []OverlapPair{{A: -1, B: 1}}}, wantErr: true},
		{name: "self pair", topo: Topology{NumCameras: 2, Pairs: []OverlapPair{{A: 1, B: 1}}}, wantErr: true},
		{name: "duplicate reversed", topo: Topology{NumCameras: 3, Pairs: []OverlapPair{{A: 0, B: 1}, {A: 1, B: 0}}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.topo.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidTopology) {
				t.Errorf("Validate() = %v, want ErrInvalidTopology", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestNewTopology_CopiesPairs(t *testing.T) {
	pairs := []OverlapPair{{A: 1, B: 0}}
	topo, err := NewTopology(2, pairs)
	if err != nil {
		t.Fatalf("NewTopology: %v", err)
	}
	pairs[0] = OverlapPair{A: 0, B: 0}
	if topo.Pairs[0] != (OverlapPair{A: 1, B: 0}) {
		t.Errorf("Pairs[0] = %v, caller mutation leaked into topology", topo.Pairs[0])
	}
	if diff := cmp.Diff([]OverlapPair{{A: 0, B: 1}}, topo.SortedPairs()); diff != "" {
		t.Errorf("SortedPairs mismatch (-want +got):\n%s", diff)
	}
}

func TestOverlapPair_Normalized(t *testing.T) {
	if got := (OverlapPair{A: 3, B: 1}).Normalized(); got != (OverlapPair{A: 1, B: 3}) {
		t.Errorf("Normalized() = %v, want (1,3)", got)
	}
	if got := (OverlapPair{A: 3, B: 1}).Normalized().String(); got != "(1,3)" {
		t.Errorf("String() = %q, want (1,3)", got)
	}
}

func TestBuildPaintedCloud(t *testing.T) {
	points := []Point{{X: 1}, {X: 2}, {X: 3}}
	fused := FusionResult{
		Scores:        [][]float64{{1}, nil, {3}},
		Retained:      []bool{true, false, true},
		RetainedCount: 2,
	}
	out := BuildPaintedCloud(points, fused)
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	if out[0].X != 1 || out[1].X != 3 {
		t.Errorf("kept X = %v, %v; want 1, 3", out[0].X, out[1].X)
	}
	if diff := cmp.Diff([]float64{3}, out[1].Scores); diff != "" {
		t.Errorf("Scores mismatch (-want +got):\n%s", diff)
	}
}

func TestAugmentedPoint_ArgMax(t *testing.T) {
	tests := []struct {
		scores []float64
		want   int
	}{
		{nil, -1},
		{[]float64{0.1, 0.2, 0.7}, 2},
		{[]float64{0.5, 0.5}, 0},
	}
	for _, tt := range tests {
		if got := (AugmentedPoint{Scores: tt.scores}).ArgMax(); got != tt.want {
			t.Errorf("ArgMax(%v) = %d, want %d", tt.scores, got, tt.want)
		}
	}
}
