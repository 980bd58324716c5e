// Command paint-report renders an HTML report for a recorded painting run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/pointpainting/internal/config"
	"github.com/banshee-data/pointpainting/internal/fsutil"
	"github.com/banshee-data/pointpainting/internal/painting"
	"github.com/banshee-data/pointpainting/internal/painting/bevplot"
	"github.com/banshee-data/pointpainting/internal/painting/lidarfile"
	"github.com/banshee-data/pointpainting/internal/painting/report"
	"github.com/banshee-data/pointpainting/internal/painting/storage/sqlite"
	"github.com/banshee-data/pointpainting/internal/security"
)

var (
	dbPath     = flag.String("db", "painting_runs.db", "Run history database")
	runID      = flag.String("run", "", "Run to report (defaults to the most recent)")
	outPath    = flag.String("out", "", "Output HTML file (defaults to painting_report_<run>.html)")
	configPath = flag.String("config", "", "Painting config JSON used for class names")
	bevDir     = flag.String("bev", "", "Also re-render bird's-eye-view PNGs of the run's painted frames into this directory")
)

func main() {
	flag.Parse()

	db, err := sqlite.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	classNames := config.DefaultPaintingConfig().GetClassNames()
	if *configPath != "" {
		cfg, err := config.LoadPaintingConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		classNames = cfg.GetClassNames()
	}

	store := sqlite.NewRunStore(db, nil)
	out, err := writeReport(store, *runID, *outPath, classNames)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("report written to %s", out)

	if *bevDir != "" {
		run, err := resolveRun(store, *runID)
		if err != nil {
			log.Fatal(err)
		}
		frames, err := store.ListFrames(run.RunID)
		if err != nil {
			log.Fatalf("failed to list frames: %v", err)
		}
		n, err := renderBEV(context.Background(), fsutil.OSFileSystem{}, frames, *bevDir, classNames)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("%d bird's-eye-view plots written to %s", n, *bevDir)
	}
}

// writeReport renders the run's report to outPath and returns the path
// written.
func writeReport(store *sqlite.RunStore, id, outPath string, classNames []string) (string, error) {
	run, err := resolveRun(store, id)
	if err != nil {
		return "", err
	}
	frames, err := store.ListFrames(run.RunID)
	if err != nil {
		return "", fmt.Errorf("failed to list frames: %w", err)
	}

	if outPath == "" {
		outPath = fmt.Sprintf("painting_report_%s.html", security.SanitizeFilename(run.RunID))
	}
	f, err := os.Create(filepath.Clean(outPath))
	if err != nil {
		return "", fmt.Errorf("failed to create report: %w", err)
	}
	if err := report.Render(f, run, frames, classNames); err != nil {
		f.Close()
		return "", err
	}
	return outPath, f.Close()
}

func resolveRun(store *sqlite.RunStore, id string) (*sqlite.Run, error) {
	if id != "" {
		return store.GetRun(id)
	}
	runs, err := store.ListRuns(1)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		return nil, sqlite.ErrRunNotFound
	}
	return runs[0], nil
}

// renderBEV reads back the painted cloud of every successful frame and
// plots it into dir. Frames without a recorded output are skipped. It
// returns the number of plots written.
func renderBEV(ctx context.Context, fs fsutil.FileSystem, frames []*sqlite.FrameRecord, dir string, classNames []string) (int, error) {
	plotter := bevplot.NewBEVPlotter(fs, dir, classNames)
	written := 0
	for _, f := range frames {
		if f.Error != "" || f.OutputPath == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return written, err
		}
		points, err := readPainted(fs, f.OutputPath, len(classNames))
		if err != nil {
			return written, fmt.Errorf("frame %s: %w", f.FrameID, err)
		}
		if err := plotter.FramePainted(ctx, &painting.Result{FrameID: f.FrameID, Points: points}); err != nil {
			return written, fmt.Errorf("frame %s: %w", f.FrameID, err)
		}
		written++
	}
	return written, nil
}

func readPainted(fs fsutil.FileSystem, path string, numClasses int) ([]painting.AugmentedPoint, error) {
	r, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open painted cloud: %w", err)
	}
	defer r.Close()
	return lidarfile.ReadPaintedNPY(r, numClasses)
}
