// Command paint paints every frame of a dataset with per-camera semantic
// scores and writes the painted clouds next to the inputs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/banshee-data/pointpainting/internal/config"
	"github.com/banshee-data/pointpainting/internal/fsutil"
	"github.com/banshee-data/pointpainting/internal/monitoring"
	"github.com/banshee-data/pointpainting/internal/painting"
	"github.com/banshee-data/pointpainting/internal/painting/bevplot"
	"github.com/banshee-data/pointpainting/internal/painting/dataset"
	"github.com/banshee-data/pointpainting/internal/painting/pipeline"
	"github.com/banshee-data/pointpainting/internal/painting/storage/sqlite"
	"github.com/banshee-data/pointpainting/internal/version"
)

var (
	root        = flag.String("root", "", "Dataset root (contains velodyne/, calib/, scores_<c>/ ...)")
	configPath  = flag.String("config", "", "Painting config JSON (defaults to the built-in five-camera rig)")
	dbPath      = flag.String("db", "painting_runs.db", "Run history database (empty disables recording)")
	workers     = flag.Int("workers", 0, "Frames painted concurrently (0 uses frame_workers from the config)")
	plotDir     = flag.String("plots", "", "Write bird's-eye-view PNGs into this directory")
	adminListen = flag.String("admin-listen", "", "Serve debug routes (tailsql, runs) on this address while painting")
	failFast    = flag.Bool("fail-fast", false, "Stop at the first frame that fails")
	reference   = flag.Bool("reference-projection", false, "Keep in-bounds points with non-positive depth (disables the behind-camera guard)")
	verbose     = flag.Bool("v", false, "Verbose logging")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

// options collects the parsed flags.
type options struct {
	root        string
	configPath  string
	dbPath      string
	workers     int
	plotDir     string
	adminListen string
	failFast    bool
	reference   bool
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println("paint", version.String())
		return
	}
	monitoring.SetVerbose(*verbose)
	log.Printf("paint %s", version.String())

	if *root == "" {
		log.Fatal("-root is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{
		root:        *root,
		configPath:  *configPath,
		dbPath:      *dbPath,
		workers:     *workers,
		plotDir:     *plotDir,
		adminListen: *adminListen,
		failFast:    *failFast,
		reference:   *reference,
	}
	summary, err := run(ctx, fsutil.OSFileSystem{}, opts)
	if summary != nil {
		log.Printf("painted %d/%d frames, %d failed, %d/%d points retained",
			summary.Painted, summary.Frames, summary.Failed, summary.RetainedPoints, summary.InputPoints)
		if summary.RunID != "" {
			log.Printf("run id: %s", summary.RunID)
		}
	}
	if err != nil {
		log.Fatalf("painting failed: %v", err)
	}
}

// runConfig is stored with each recorded run.
type runConfig struct {
	Version  string                 `json:"version"`
	GitSHA   string                 `json:"git_sha"`
	Painting *config.PaintingConfig `json:"painting"`
}

// loadConfig reads the config file or falls back to the defaults, then
// applies flag overrides.
func loadConfig(opts options) (*config.PaintingConfig, error) {
	cfg := config.DefaultPaintingConfig()
	if opts.configPath != "" {
		var err error
		cfg, err = config.LoadPaintingConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
	}
	if opts.workers > 0 {
		cfg.FrameWorkers = &opts.workers
	}
	if opts.reference {
		reject := false
		cfg.RejectBehindCamera = &reject
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, fs fsutil.FileSystem, opts options) (*pipeline.RunSummary, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	painterOpts, err := cfg.PainterOptions()
	if err != nil {
		return nil, err
	}
	painter, err := painting.NewPainter(painterOpts)
	if err != nil {
		return nil, err
	}
	ds, err := dataset.Open(fs, filepath.Clean(opts.root), cfg)
	if err != nil {
		return nil, err
	}

	rc := pipeline.Config{
		Painter:   painter,
		Dataset:   ds,
		Workers:   cfg.GetFrameWorkers(),
		FailFast:  opts.failFast,
		RunConfig: runConfig{Version: version.Version, GitSHA: version.GitSHA, Painting: cfg},
	}

	if opts.dbPath != "" {
		db, err := sqlite.Open(opts.dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open run database: %w", err)
		}
		defer db.Close()
		rc.Recorder = sqlite.NewRunStore(db, nil)

		if opts.adminListen != "" {
			mux := http.NewServeMux()
			if err := db.AttachAdminRoutes(mux); err != nil {
				return nil, err
			}
			stopAdmin := serveAdmin(opts.adminListen, mux)
			defer stopAdmin()
		}
	} else if opts.adminListen != "" {
		log.Printf("-admin-listen ignored: no run database")
	}

	if opts.plotDir != "" {
		rc.Sinks = append(rc.Sinks, bevplot.NewBEVPlotter(fs, opts.plotDir, cfg.GetClassNames()))
	}

	runner, err := pipeline.NewRunner(rc)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx)
}

// serveAdmin starts the debug server and returns a function that shuts it
// down.
func serveAdmin(addr string, mux *http.ServeMux) func() {
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Printf("admin routes on http://%s/debug/", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("admin server failed: %v", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("admin server shutdown error: %v", err)
			server.Close()
		}
	}
}
