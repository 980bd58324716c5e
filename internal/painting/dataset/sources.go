package dataset

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/pointpainting/internal/fsutil"
	"github.com/banshee-data/pointpainting/internal/painting"
	"github.com/banshee-data/pointpainting/internal/painting/calibfile"
	"github.com/banshee-data/pointpainting/internal/painting/lidarfile"
	"github.com/banshee-data/pointpainting/internal/painting/segmentation"
)

// ScoreSource supplies the class score map of one camera for one frame.
type ScoreSource interface {
	ScoreMap(ctx context.Context, frameID string, camera int) (*painting.ClassScoreMap, error)
}

// CalibrationSource supplies the rig calibration for one frame.
type CalibrationSource interface {
	Calibration(ctx context.Context, frameID string) (*painting.Calibration, error)
}

// NPYScores reads precomputed (H, W, K) maps from scores_<camera>/<id>.npy.
type NPYScores struct {
	FS   fsutil.FileSystem
	Root string
}

// ScoreMap implements ScoreSource.
func (s NPYScores) ScoreMap(ctx context.Context, frameID string, camera int) (*painting.ClassScoreMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.Root, fmt.Sprintf("scores_%d", camera), frameID+".npy")
	f, err := s.FS.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open score map: %w", err)
	}
	defer f.Close()

	m, err := lidarfile.ReadScoreMapNPY(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// NPYLogits reads raw (C, H, W) network outputs from
// logits_<camera>/<id>.npy and remaps them to class scores.
type NPYLogits struct {
	FS       fsutil.FileSystem
	Root     string
	Remapper *segmentation.Remapper
}

// ScoreMap implements ScoreSource.
func (s NPYLogits) ScoreMap(ctx context.Context, frameID string, camera int) (*painting.ClassScoreMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.Root, fmt.Sprintf("logits_%d", camera), frameID+".npy")
	f, err := s.FS.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open logits: %w", err)
	}
	defer f.Close()

	l, err := lidarfile.ReadLogitsNPY(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m, err := s.Remapper.Remap(l)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// CalibFiles reads calib/<id>.txt.
type CalibFiles struct {
	FS         fsutil.FileSystem
	Root       string
	NumCameras int
}

// Calibration implements CalibrationSource.
func (s CalibFiles) Calibration(ctx context.Context, frameID string) (*painting.Calibration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.Root, "calib", frameID+".txt")
	f, err := s.FS.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open calibration: %w", err)
	}
	defer f.Close()

	cal, err := calibfile.Load(f, s.NumCameras)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cal, nil
}
