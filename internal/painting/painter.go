package painting

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/pointpainting/internal/monitoring"
)

// Options configures a Painter.
type Options struct {
	// Topology declares the rig's cameras and overlap pairs.
	Topology Topology
	// NumClasses is the length of every score vector (K).
	NumClasses int
	// RejectBehindCamera drops points with non-positive projected depth
	// from a camera's visible set. When false, such points are kept if
	// their mirrored pixel lands in the image.
	RejectBehindCamera bool
}

// DefaultOptions returns options for the five-camera rig with six classes
// and the behind-camera guard enabled.
func DefaultOptions() Options {
	return Options{
		Topology:           DefaultTopology(),
		NumClasses:         DefaultNumClasses,
		RejectBehindCamera: true,
	}
}

// CameraStats summarises one camera's view of a frame.
type CameraStats struct {
	Camera       int `json:"camera"`
	Visible      int `json:"visible"`
	BehindCamera int `json:"behind_camera"`
}

// PairStats counts the points halved for one overlap pair.
type PairStats struct {
	Pair   OverlapPair `json:"pair"`
	Points int         `json:"points"`
}

// Stats describes the outcome of painting one frame.
type Stats struct {
	InputPoints    int           `json:"input_points"`
	RetainedPoints int           `json:"retained_points"`
	Cameras        []CameraStats `json:"cameras"`
	Overlaps       []PairStats   `json:"overlaps"`
	// ClassHistogram counts retained points by their highest-scoring class.
	ClassHistogram []int         `json:"class_histogram"`
	Duration       time.Duration `json:"duration_ns"`
}

// Result is a painted frame.
type Result struct {
	FrameID string
	Points  []AugmentedPoint
	Stats   Stats
}

// Painter paints LiDAR frames. It holds no per-frame state and is safe for
// concurrent use.
type Painter struct {
	opts Options
}

// NewPainter validates opts and returns a Painter.
func NewPainter(opts Options) (*Painter, error) {
	if err := opts.Topology.Validate(); err != nil {
		return nil, err
	}
	if opts.NumClasses <= 0 {
		return nil, fmt.Errorf("%w: class count must be positive, got %d", ErrMalformedScoreMap, opts.NumClasses)
	}
	return &Painter{opts: opts}, nil
}

// Options returns the painter's configuration.
func (p *Painter) Options() Options {
	return p.opts
}

// Paint projects the frame's points into every camera, samples the score
// maps, fuses overlapping contributions and returns the painted cloud.
// Cameras are processed concurrently. Calibration and score-map problems
// abort the frame; there is no partial result.
func (p *Painter) Paint(ctx context.Context, f Frame) (*Result, error) {
	start := time.Now()
	if err := p.checkFrame(f); err != nil {
		return nil, fmt.Errorf("frame %s: %w", f.ID, err)
	}

	n := len(f.Points)
	cams := p.opts.Topology.NumCameras
	contribs := make([]CameraContribution, cams)
	views := make([]CameraView, cams)

	g, gctx := errgroup.WithContext(ctx)
	for c := 0; c < cams; c++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			view, contrib, err := p.paintCamera(c, f)
			if err != nil {
				return err
			}
			views[c] = view
			contribs[c] = contrib
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("frame %s: %w", f.ID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fused, err := FuseScores(n, p.opts.NumClasses, p.opts.Topology, contribs)
	if err != nil {
		return nil, fmt.Errorf("frame %s: %w", f.ID, err)
	}
	points := BuildPaintedCloud(f.Points, fused)

	stats := Stats{
		InputPoints:    n,
		RetainedPoints: len(points),
		Cameras:        make([]CameraStats, cams),
		Overlaps:       make([]PairStats, len(p.opts.Topology.Pairs)),
		ClassHistogram: make([]int, p.opts.NumClasses),
	}
	for c, v := range views {
		stats.Cameras[c] = CameraStats{Camera: c, Visible: v.VisibleCount, BehindCamera: v.BehindCamera}
	}
	for i, pair := range p.opts.Topology.Pairs {
		stats.Overlaps[i] = PairStats{Pair: pair, Points: fused.OverlapHits[i]}
	}
	for _, ap := range points {
		if k := ap.ArgMax(); k >= 0 {
			stats.ClassHistogram[k]++
		}
	}
	stats.Duration = time.Since(start)

	monitoring.Debugf("painting: frame %s retained %d/%d points in %v", f.ID, stats.RetainedPoints, n, stats.Duration)
	return &Result{FrameID: f.ID, Points: points, Stats: stats}, nil
}

// paintCamera runs transform, projection, visibility and sampling for one
// camera.
func (p *Painter) paintCamera(c int, f Frame) (CameraView, CameraContribution, error) {
	cam, err := f.Calibration.Camera(c)
	if err != nil {
		return CameraView{}, CameraContribution{}, err
	}
	scores := f.ScoreMaps[c]

	camPoints := ToCameraFrame(f.Points, cam.Extrinsic)
	projected := NewProjector(f.Calibration.Rectification, cam.Projection).ProjectAll(camPoints)
	if projected == nil {
		projected = []ProjectedPoint{}
	}
	view := VisibilityMask(c, projected, scores.Width, scores.Height, p.opts.RejectBehindCamera)
	if view.BehindCamera > 0 && !p.opts.RejectBehindCamera {
		monitoring.Debugf("painting: frame %s camera %d kept %d in-bounds points with non-positive depth", f.ID, c, view.BehindCamera)
	}
	contrib, err := SampleScores(view, scores)
	if err != nil {
		return CameraView{}, CameraContribution{}, err
	}
	return view, contrib, nil
}

// checkFrame verifies that calibration, score maps and topology agree.
func (p *Painter) checkFrame(f Frame) error {
	if f.Calibration == nil {
		return fmt.Errorf("%w: missing calibration", ErrMalformedCalibration)
	}
	if err := f.Calibration.Validate(); err != nil {
		return err
	}
	cams := p.opts.Topology.NumCameras
	if f.Calibration.NumCameras() != cams {
		return fmt.Errorf("%w: calibration has %d cameras, topology has %d",
			ErrMalformedCalibration, f.Calibration.NumCameras(), cams)
	}
	if len(f.ScoreMaps) != cams {
		return fmt.Errorf("%w: %d score maps for %d cameras", ErrMalformedScoreMap, len(f.ScoreMaps), cams)
	}
	for c, m := range f.ScoreMaps {
		if m == nil {
			return fmt.Errorf("%w: camera %d has no score map", ErrMalformedScoreMap, c)
		}
		if m.Classes != p.opts.NumClasses {
			return fmt.Errorf("%w: camera %d map has %d classes, want %d",
				ErrMalformedScoreMap, c, m.Classes, p.opts.NumClasses)
		}
		if len(m.Data) != m.Height*m.Width*m.Classes {
			return fmt.Errorf("%w: camera %d map data length %d does not match shape", ErrMalformedScoreMap, c, len(m.Data))
		}
	}
	return nil
}
