// Command remap-logits converts per-camera segmentation logits into the
// class score maps the painter reads, so a dataset can be painted with
// score_format "scores" after a single conversion pass.
//
// For every frame and camera it reads logits_<c>/<id>.npy, applies a
// per-pixel softmax, sums the probabilities of each class group and writes
// scores_<c>/<id>.npy.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/pointpainting/internal/config"
	"github.com/banshee-data/pointpainting/internal/fsutil"
	"github.com/banshee-data/pointpainting/internal/monitoring"
	"github.com/banshee-data/pointpainting/internal/painting"
	"github.com/banshee-data/pointpainting/internal/painting/dataset"
	"github.com/banshee-data/pointpainting/internal/painting/lidarfile"
	"github.com/banshee-data/pointpainting/internal/painting/segmentation"
)

var (
	root       = flag.String("root", "", "Dataset root (contains logits_<c>/)")
	configPath = flag.String("config", "", "Painting config JSON with camera_count, num_classes and class_groups")
	overwrite  = flag.Bool("overwrite", false, "Replace score maps that already exist")
	verbose    = flag.Bool("v", false, "Verbose logging")
)

type options struct {
	root       string
	configPath string
	overwrite  bool
}

// summary counts the maps handled by one conversion pass.
type summary struct {
	Written int64
	Skipped int64
}

func main() {
	flag.Parse()
	monitoring.SetVerbose(*verbose)
	if *root == "" {
		log.Fatal("-root is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := run(ctx, fsutil.OSFileSystem{}, options{root: *root, configPath: *configPath, overwrite: *overwrite})
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("%d score maps written, %d already present", s.Written, s.Skipped)
}

func loadConfig(path string) (*config.PaintingConfig, error) {
	cfg := config.DefaultPaintingConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadPaintingConfig(path); err != nil {
			return nil, err
		}
	}
	// The conversion always reads logits, so the class group table must
	// pass the logits checks even when the file says "scores".
	logits := config.ScoreFormatLogits
	cfg.ScoreFormat = &logits
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, fs fsutil.FileSystem, opts options) (*summary, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	ds, err := dataset.Open(fs, opts.root, cfg)
	if err != nil {
		return nil, err
	}
	ids, err := ds.Frames()
	if err != nil {
		return nil, err
	}
	remapper, err := segmentation.NewRemapper(cfg.GetClassGroups())
	if err != nil {
		return nil, fmt.Errorf("class groups: %w", err)
	}
	src := dataset.NPYLogits{FS: fs, Root: opts.root, Remapper: remapper}

	var s summary
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.GetFrameWorkers())
	for _, id := range ids {
		for c := 0; c < cfg.GetCameraCount(); c++ {
			g.Go(func() error {
				dst := filepath.Join(opts.root, fmt.Sprintf("scores_%d", c), id+".npy")
				if !opts.overwrite && fs.Exists(dst) {
					atomic.AddInt64(&s.Skipped, 1)
					return nil
				}
				m, err := src.ScoreMap(gctx, id, c)
				if err != nil {
					return fmt.Errorf("frame %s: %w", id, err)
				}
				if err := writeScoreMap(fs, dst, m); err != nil {
					return fmt.Errorf("frame %s camera %d: %w", id, c, err)
				}
				monitoring.Debugf("remap-logits: wrote %s", dst)
				atomic.AddInt64(&s.Written, 1)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return &s, err
	}
	return &s, nil
}

// writeScoreMap writes m to a temporary file beside path and renames it
// into place.
func writeScoreMap(fs fsutil.FileSystem, path string, m *painting.ClassScoreMap) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create score dir: %w", err)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(path)+".tmp")
	w, err := fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("create score map: %w", err)
	}
	if err := lidarfile.WriteScoreMapNPY(w, m); err != nil {
		w.Close()
		_ = fs.Remove(tmp)
		return err
	}
	if err := w.Close(); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("close score map: %w", err)
	}
	return fs.Rename(tmp, path)
}
