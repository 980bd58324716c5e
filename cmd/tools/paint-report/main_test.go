package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pointpainting/internal/fsutil"
	"github.com/banshee-data/pointpainting/internal/painting"
	"github.com/banshee-data/pointpainting/internal/painting/lidarfile"
	"github.com/banshee-data/pointpainting/internal/painting/storage/sqlite"
	"github.com/banshee-data/pointpainting/internal/timeutil"
)

func newStore(t *testing.T) (*sqlite.RunStore, *timeutil.MockClock) {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	return sqlite.NewRunStore(db, clock), clock
}

func TestWriteReport_Latest(t *testing.T) {
	store, clock := newStore(t)

	first, err := store.StartRun("/old", 1, nil)
	require.NoError(t, err)
	clock.Advance(time.Second)
	latest, err := store.StartRun("/new", 1, nil)
	require.NoError(t, err)

	st := painting.Stats{InputPoints: 10, RetainedPoints: 4, ClassHistogram: []int{1, 3, 0, 0, 0, 0}}
	require.NoError(t, store.RecordFrame(sqlite.FrameRecordFromStats(latest.RunID, "000000", "/new/painted_lidar/000000.npy", st)))
	require.NoError(t, store.FinishRun(latest.RunID, sqlite.RunStatusCompleted, ""))

	out := filepath.Join(t.TempDir(), "report.html")
	written, err := writeReport(store, "", out, painting.DefaultClassNames)
	require.NoError(t, err)
	assert.Equal(t, out, written)

	html, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(html), latest.RunID))
	assert.False(t, strings.Contains(string(html), first.RunID))
}

func TestWriteReport_Errors(t *testing.T) {
	store, _ := newStore(t)

	_, err := writeReport(store, "", filepath.Join(t.TempDir(), "r.html"), nil)
	assert.True(t, errors.Is(err, sqlite.ErrRunNotFound), "empty database, got %v", err)

	_, err = writeReport(store, "missing", filepath.Join(t.TempDir(), "r.html"), nil)
	assert.True(t, errors.Is(err, sqlite.ErrRunNotFound))
}

func TestRenderBEV(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	points := []painting.AugmentedPoint{
		{Point: painting.Point{X: 4, Y: 1, Intensity: 0.5}, Scores: []float64{0.1, 0.9, 0, 0, 0, 0}},
		{Point: painting.Point{X: 9, Y: -2, Z: 0.3, Intensity: 0.2}, Scores: []float64{0.8, 0.2, 0, 0, 0, 0}},
	}
	var buf bytes.Buffer
	require.NoError(t, lidarfile.WritePaintedNPY(&buf, points))
	require.NoError(t, fs.MkdirAll("/data/painted_lidar", 0755))
	require.NoError(t, fs.WriteFile("/data/painted_lidar/000000.npy", buf.Bytes(), 0644))

	frames := []*sqlite.FrameRecord{
		{FrameID: "000000", OutputPath: "/data/painted_lidar/000000.npy"},
		{FrameID: "000001", Error: "malformed calibration"},
		{FrameID: "000002"},
	}
	n, err := renderBEV(context.Background(), fs, frames, "/bev", painting.DefaultClassNames)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, fs.Exists("/bev/000000_bev.png"))
	assert.False(t, fs.Exists("/bev/000001_bev.png"))

	frames[2].OutputPath = "/data/painted_lidar/000002.npy"
	_, err = renderBEV(context.Background(), fs, frames, "/bev", painting.DefaultClassNames)
	assert.ErrorContains(t, err, "frame 000002")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = renderBEV(ctx, fs, frames, "/bev", painting.DefaultClassNames)
	assert.ErrorIs(t, err, context.Canceled)
}
