package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pointpainting/internal/fsutil"
	"github.com/banshee-data/pointpainting/internal/painting"
	"github.com/banshee-data/pointpainting/internal/painting/lidarfile"
	"github.com/banshee-data/pointpainting/internal/painting/storage/sqlite"
)

// TestFlagDefaults verifies the flags exist with their documented defaults.
func TestFlagDefaults(t *testing.T) {
	if dbPath == nil || *dbPath != "painting_runs.db" {
		t.Errorf("expected -db default painting_runs.db, got %v", dbPath)
	}
	if workers == nil || *workers != 0 {
		t.Errorf("expected -workers default 0, got %v", workers)
	}
	if failFast == nil || *failFast != false {
		t.Errorf("expected -fail-fast default false, got %v", failFast)
	}
	if reference == nil || *reference != false {
		t.Errorf("expected -reference-projection default false, got %v", reference)
	}
	if adminListen == nil || *adminListen != "" {
		t.Errorf("expected -admin-listen disabled by default, got %v", adminListen)
	}
}

const testRoot = "/data/training"

const calib = `P0: 1 0 5 0 0 1 5 0 0 0 1 0
P1: 1 0 5 0 0 1 5 0 0 0 1 0
R0_rect: 1 0 0 0 1 0 0 0 1
Tr_velo_to_cam_0: 1 0 0 0 0 1 0 0 0 0 1 0
Tr_velo_to_cam_1: 1 0 0 0 0 1 0 0 0 0 1 0
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rig.json")
	cfg := `{"camera_count": 2, "overlap_pairs": [[0, 1]], "frame_workers": 2}`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return path
}

func encodePoints(points []painting.Point, channels int) []byte {
	var buf bytes.Buffer
	for _, p := range points {
		row := make([]float32, channels)
		ch := p.Channels()
		copy(row, ch[:min(channels, len(ch))])
		_ = binary.Write(&buf, binary.LittleEndian, row)
	}
	return buf.Bytes()
}

func writeDataset(t *testing.T, fs *fsutil.MemoryFileSystem, ids ...string) {
	t.Helper()
	points := []painting.Point{
		{X: 0, Y: 0, Z: 5, Intensity: 0.3},   // centre of both images
		{X: 100, Y: 0, Z: 1, Intensity: 0.1}, // outside both
	}
	for _, id := range ids {
		require.NoError(t, fs.WriteFile(filepath.Join(testRoot, "calib", id+".txt"), []byte(calib), 0644))
		require.NoError(t, fs.WriteFile(filepath.Join(testRoot, "velodyne", id+".bin"), encodePoints(points, 6), 0644))
		require.NoError(t, fs.WriteFile(filepath.Join(testRoot, "image_0", id+".png"), []byte("png"), 0644))
		for c := 0; c < 2; c++ {
			m, err := painting.NewClassScoreMap(10, 10, painting.DefaultNumClasses, nil)
			require.NoError(t, err)
			scores := make([]float32, painting.DefaultNumClasses)
			scores[c] = 1
			m.Fill(scores)

			var buf bytes.Buffer
			require.NoError(t, lidarfile.WriteScoreMapNPY(&buf, m))
			require.NoError(t, fs.WriteFile(filepath.Join(testRoot, fmt.Sprintf("scores_%d", c), id+".npy"), buf.Bytes(), 0644))
		}
	}
}

func TestRun(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	writeDataset(t, fs, "000000", "000001")

	dbFile := filepath.Join(t.TempDir(), "runs.db")
	summary, err := run(context.Background(), fs, options{
		root:       testRoot,
		configPath: writeConfig(t),
		dbPath:     dbFile,
		plotDir:    "/plots",
	})
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.Equal(t, 2, summary.Frames)
	assert.Equal(t, 2, summary.Painted)
	assert.Equal(t, 4, summary.InputPoints)
	assert.Equal(t, 2, summary.RetainedPoints)

	data, err := fs.ReadFile(filepath.Join(testRoot, "painted_lidar", "000001.npy"))
	require.NoError(t, err)
	painted, err := lidarfile.ReadPaintedNPY(bytes.NewReader(data), painting.DefaultNumClasses)
	require.NoError(t, err)
	require.Len(t, painted, 1)
	assert.Equal(t, []float64{0.5, 0.5, 0, 0, 0, 0}, painted[0].Scores)

	assert.True(t, fs.Exists("/plots/000000_bev.png"))

	db, err := sqlite.Open(dbFile)
	require.NoError(t, err)
	defer db.Close()
	stored, err := sqlite.NewRunStore(db, nil).GetRun(summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, sqlite.RunStatusCompleted, stored.Status)
	assert.Equal(t, 2, stored.FramesPainted)
	assert.Contains(t, string(stored.ConfigJSON), `"version":"dev"`)
	assert.Contains(t, string(stored.ConfigJSON), `"camera_count":2`)
}

func TestRun_NoDatabase(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	writeDataset(t, fs, "000000")

	summary, err := run(context.Background(), fs, options{
		root:       testRoot,
		configPath: writeConfig(t),
	})
	require.NoError(t, err)
	assert.Empty(t, summary.RunID)
	assert.Equal(t, 1, summary.Painted)
}

func TestRun_ReferenceProjection(t *testing.T) {
	opts := options{reference: true, workers: 3}
	cfg, err := loadConfig(opts)
	require.NoError(t, err)
	assert.False(t, cfg.GetRejectBehindCamera())
	assert.Equal(t, 3, cfg.GetFrameWorkers())
}

func TestRun_Errors(t *testing.T) {
	_, err := run(context.Background(), fsutil.NewMemoryFileSystem(), options{root: "/missing"})
	assert.Error(t, err)

	_, err = run(context.Background(), fsutil.NewMemoryFileSystem(), options{root: testRoot, configPath: "rig.yaml"})
	assert.Error(t, err)
}
