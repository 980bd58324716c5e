// Package dataset reads painting inputs from a dataset directory and writes
// painted clouds back into it.
//
// Layout under the root:
//
//	velodyne/<id>.bin       raw float32 points
//	calib/<id>.txt          rig calibration
//	image_0/<id>.jpg        camera images, used only to list frames
//	scores_<c>/<id>.npy     (H, W, K) class scores per camera
//	logits_<c>/<id>.npy     (C, H, W) network logits per camera
//	painted_lidar/<id>.npy  painted output
package dataset

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/pointpainting/internal/config"
	"github.com/banshee-data/pointpainting/internal/fsutil"
	"github.com/banshee-data/pointpainting/internal/monitoring"
	"github.com/banshee-data/pointpainting/internal/painting"
	"github.com/banshee-data/pointpainting/internal/painting/lidarfile"
	"github.com/banshee-data/pointpainting/internal/painting/segmentation"
	"github.com/banshee-data/pointpainting/internal/security"
)

const (
	pointDir = "velodyne"
	imageDir = "image_0"
)

// Dataset is a directory of frames.
type Dataset struct {
	fs            fsutil.FileSystem
	root          string
	numCameras    int
	pointChannels int
	outputDir     string
	scores        ScoreSource
	calib         CalibrationSource
}

// Option customises a Dataset.
type Option func(*Dataset)

// WithScoreSource replaces the score source chosen from the config.
func WithScoreSource(s ScoreSource) Option {
	return func(d *Dataset) { d.scores = s }
}

// WithCalibrationSource replaces the calib/<id>.txt reader.
func WithCalibrationSource(c CalibrationSource) Option {
	return func(d *Dataset) { d.calib = c }
}

// Open returns a dataset rooted at root. The score source follows
// cfg.GetScoreFormat.
func Open(fs fsutil.FileSystem, root string, cfg *config.PaintingConfig, opts ...Option) (*Dataset, error) {
	if !fs.Exists(root) {
		return nil, fmt.Errorf("dataset root %s does not exist", root)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	d := &Dataset{
		fs:            fs,
		root:          root,
		numCameras:    cfg.GetCameraCount(),
		pointChannels: cfg.GetPointChannels(),
		outputDir:     cfg.GetOutputDir(),
		calib:         CalibFiles{FS: fs, Root: root, NumCameras: cfg.GetCameraCount()},
	}
	if err := security.WithinDirectory(filepath.Join(root, d.outputDir), root); err != nil {
		return nil, fmt.Errorf("output_dir: %w", err)
	}

	switch cfg.GetScoreFormat() {
	case config.ScoreFormatLogits:
		r, err := segmentation.NewRemapper(cfg.GetClassGroups())
		if err != nil {
			return nil, fmt.Errorf("class groups: %w", err)
		}
		d.scores = NPYLogits{FS: fs, Root: root, Remapper: r}
	default:
		d.scores = NPYScores{FS: fs, Root: root}
	}

	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Root returns the dataset directory.
func (d *Dataset) Root() string {
	return d.root
}

// Frames lists frame ids, sorted. Ids come from image_0 when present and
// from velodyne otherwise.
func (d *Dataset) Frames() ([]string, error) {
	dir := filepath.Join(d.root, imageDir)
	if !d.fs.Exists(dir) {
		dir = filepath.Join(d.root, pointDir)
	}
	names, err := d.fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	ids := make([]string, 0, len(names))
	for _, n := range names {
		if strings.HasPrefix(n, ".") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(n, filepath.Ext(n)))
	}
	return ids, nil
}

// Load reads everything needed to paint one frame.
func (d *Dataset) Load(ctx context.Context, id string) (painting.Frame, error) {
	f := painting.Frame{ID: id}

	cal, err := d.calib.Calibration(ctx, id)
	if err != nil {
		return f, err
	}
	f.Calibration = cal

	path := filepath.Join(d.root, pointDir, id+".bin")
	pf, err := d.fs.Open(path)
	if err != nil {
		return f, fmt.Errorf("read points: %w", err)
	}
	f.Points, err = lidarfile.ReadPoints(pf, d.pointChannels)
	pf.Close()
	if err != nil {
		return f, fmt.Errorf("%s: %w", path, err)
	}

	f.ScoreMaps = make([]*painting.ClassScoreMap, d.numCameras)
	for c := range f.ScoreMaps {
		m, err := d.scores.ScoreMap(ctx, id, c)
		if err != nil {
			return f, fmt.Errorf("camera %d: %w", c, err)
		}
		f.ScoreMaps[c] = m
	}
	return f, nil
}

// OutputPath returns where Save writes the painted cloud of frame id.
func (d *Dataset) OutputPath(id string) string {
	return filepath.Join(d.root, d.outputDir, id+".npy")
}

// Save writes a painted cloud to OutputPath. Ids that would resolve outside
// the output directory are rejected. The cloud is written to a temporary
// file first, so a failed write leaves any earlier output in place.
func (d *Dataset) Save(id string, points []painting.AugmentedPoint) error {
	outDir := filepath.Join(d.root, d.outputDir)
	path := d.OutputPath(id)
	if err := security.WithinDirectory(path, outDir); err != nil || filepath.Dir(path) != outDir {
		return fmt.Errorf("invalid frame id %q", id)
	}
	if err := d.fs.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp := filepath.Join(outDir, "."+filepath.Base(path)+".tmp")
	w, err := d.fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("create painted cloud: %w", err)
	}
	if err := lidarfile.WritePaintedNPY(w, points); err != nil {
		w.Close()
		d.removeTemp(tmp)
		return err
	}
	if err := w.Close(); err != nil {
		d.removeTemp(tmp)
		return fmt.Errorf("close painted cloud: %w", err)
	}
	if err := d.fs.Rename(tmp, path); err != nil {
		d.removeTemp(tmp)
		return fmt.Errorf("move painted cloud into place: %w", err)
	}
	return nil
}

func (d *Dataset) removeTemp(name string) {
	if err := d.fs.Remove(name); err != nil {
		monitoring.Logf("dataset: failed to remove %s: %v", name, err)
	}
}
