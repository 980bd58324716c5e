// Package pipeline paints every frame of a dataset and records the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/pointpainting/internal/monitoring"
	"github.com/banshee-data/pointpainting/internal/painting"
	"github.com/banshee-data/pointpainting/internal/painting/storage/sqlite"
	"github.com/banshee-data/pointpainting/internal/timeutil"
)

// Dataset is the frame source and painted-cloud destination.
type Dataset interface {
	Root() string
	Frames() ([]string, error)
	Load(ctx context.Context, id string) (painting.Frame, error)
	Save(id string, points []painting.AugmentedPoint) error
	OutputPath(id string) string
}

// Recorder persists run history. *sqlite.RunStore implements it.
type Recorder interface {
	StartRun(datasetRoot string, framesTotal int, cfg interface{}) (*sqlite.Run, error)
	RecordFrame(rec *sqlite.FrameRecord) error
	FinishRun(runID, status, errMsg string) error
}

// Sink receives every painted frame after it has been saved.
type Sink interface {
	FramePainted(ctx context.Context, res *painting.Result) error
}

// Config holds the runner's collaborators. Painter and Dataset are
// required.
type Config struct {
	Painter  *painting.Painter
	Dataset  Dataset
	Recorder Recorder
	Sinks    []Sink
	// Workers bounds how many frames are painted at once.
	Workers int
	// FailFast stops the run at the first frame error. Otherwise failed
	// frames are recorded and skipped.
	FailFast bool
	// RunConfig is stored with the run for later inspection.
	RunConfig interface{}
	Clock     timeutil.Clock
}

// Runner paints datasets.
type Runner struct {
	cfg Config
}

// NewRunner validates cfg and returns a Runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Painter == nil {
		return nil, errors.New("pipeline: painter is required")
	}
	if cfg.Dataset == nil {
		return nil, errors.New("pipeline: dataset is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Runner{cfg: cfg}, nil
}

// FrameOutcome is the result of one frame, in dataset order.
type FrameOutcome struct {
	FrameID    string
	Stats      painting.Stats
	OutputPath string
	Err        error
}

// RunSummary aggregates a run.
type RunSummary struct {
	RunID          string
	Frames         int
	Painted        int
	Failed         int
	Skipped        int
	InputPoints    int
	RetainedPoints int
	ClassHistogram []int
	Outcomes       []FrameOutcome
	Duration       time.Duration
}

// Run paints every frame of the dataset. It returns ctx.Err() when
// cancelled and, with FailFast, the first frame error. The summary is
// returned in every case once the frame list is known.
func (r *Runner) Run(ctx context.Context) (*RunSummary, error) {
	start := r.cfg.Clock.Now()
	ids, err := r.cfg.Dataset.Frames()
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{
		Frames:         len(ids),
		ClassHistogram: make([]int, r.cfg.Painter.Options().NumClasses),
		Outcomes:       make([]FrameOutcome, len(ids)),
	}
	if r.cfg.Recorder != nil {
		run, err := r.cfg.Recorder.StartRun(r.cfg.Dataset.Root(), len(ids), r.cfg.RunConfig)
		if err != nil {
			return nil, err
		}
		summary.RunID = run.RunID
	}
	monitoring.Logf("painting %d frames from %s with %d workers", len(ids), r.cfg.Dataset.Root(), r.cfg.Workers)

	done := make([]bool, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out, finished := r.paintFrame(gctx, summary.RunID, id)
			summary.Outcomes[i] = out
			done[i] = finished
			if out.Err != nil && r.cfg.FailFast {
				return out.Err
			}
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	for i, out := range summary.Outcomes {
		if !done[i] {
			summary.Outcomes[i].FrameID = ids[i]
			summary.Skipped++
			continue
		}
		if out.Err != nil {
			summary.Failed++
			continue
		}
		summary.Painted++
		summary.InputPoints += out.Stats.InputPoints
		summary.RetainedPoints += out.Stats.RetainedPoints
		for k, n := range out.Stats.ClassHistogram {
			if k < len(summary.ClassHistogram) {
				summary.ClassHistogram[k] += n
			}
		}
	}
	summary.Duration = r.cfg.Clock.Since(start)

	if r.cfg.Recorder != nil {
		status, msg := RunStatus(ctx, runErr)
		if err := r.cfg.Recorder.FinishRun(summary.RunID, status, msg); err != nil {
			monitoring.Logf("failed to finish run %s: %v", summary.RunID, err)
		}
	}
	monitoring.Logf("painted %d/%d frames (%d failed, %d skipped) in %v",
		summary.Painted, summary.Frames, summary.Failed, summary.Skipped, summary.Duration)
	return summary, runErr
}

// RunStatus maps the run error to a stored status and message.
func RunStatus(ctx context.Context, runErr error) (string, string) {
	switch {
	case runErr == nil:
		return sqlite.RunStatusCompleted, ""
	case ctx.Err() != nil && errors.Is(runErr, ctx.Err()):
		return sqlite.RunStatusCancelled, runErr.Error()
	default:
		return sqlite.RunStatusFailed, runErr.Error()
	}
}

// paintFrame loads, paints, saves and records one frame. finished is false
// when the frame was abandoned because ctx ended.
func (r *Runner) paintFrame(ctx context.Context, runID, id string) (out FrameOutcome, finished bool) {
	out = FrameOutcome{FrameID: id}

	res, err := r.process(ctx, id)
	if err != nil {
		out.Err = err
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return out, false
		}
		monitoring.Logf("frame %s failed: %v", id, err)
		r.record(&sqlite.FrameRecord{RunID: runID, FrameID: id, Error: err.Error()})
		return out, true
	}

	out.Stats = res.Stats
	out.OutputPath = r.cfg.Dataset.OutputPath(id)
	r.record(sqlite.FrameRecordFromStats(runID, id, out.OutputPath, res.Stats))

	for _, s := range r.cfg.Sinks {
		if err := s.FramePainted(ctx, res); err != nil {
			monitoring.Logf("frame %s: sink failed: %v", id, err)
		}
	}
	return out, true
}

func (r *Runner) record(rec *sqlite.FrameRecord) {
	if r.cfg.Recorder == nil {
		return
	}
	if err := r.cfg.Recorder.RecordFrame(rec); err != nil {
		monitoring.Logf("frame %s: failed to record: %v", rec.FrameID, err)
	}
}

func (r *Runner) process(ctx context.Context, id string) (*painting.Result, error) {
	f, err := r.cfg.Dataset.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load frame %s: %w", id, err)
	}
	res, err := r.cfg.Painter.Paint(ctx, f)
	if err != nil {
		return nil, err
	}
	if err := r.cfg.Dataset.Save(id, res.Points); err != nil {
		return nil, fmt.Errorf("save frame %s: %w", id, err)
	}
	monitoring.Debugf("frame %s: %d/%d points painted", id, res.Stats.RetainedPoints, res.Stats.InputPoints)
	return res, nil
}
