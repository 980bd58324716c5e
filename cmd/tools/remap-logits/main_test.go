package main

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/pointpainting/internal/fsutil"
	"github.com/banshee-data/pointpainting/internal/painting/lidarfile"
)

const testRoot = "/data/training"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rig.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// newDataset lays out one frame with 19-channel logits for each camera.
func newDataset(t *testing.T, cameras int) *fsutil.MemoryFileSystem {
	t.Helper()
	fs := fsutil.NewMemoryFileSystem()
	if err := fs.MkdirAll(filepath.Join(testRoot, "velodyne"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := fs.WriteFile(filepath.Join(testRoot, "velodyne", "000000.bin"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	data := make([]float32, 19*2*3)
	for i := range data {
		data[i] = float32(i%7) * 0.25
	}
	for c := 0; c < cameras; c++ {
		var buf bytes.Buffer
		if err := lidarfile.WriteFloat32NPY(&buf, []int{19, 2, 3}, data); err != nil {
			t.Fatal(err)
		}
		dir := filepath.Join(testRoot, fmt.Sprintf("logits_%d", c))
		if err := fs.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := fs.WriteFile(filepath.Join(dir, "000000.npy"), buf.Bytes(), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return fs
}

func TestRun_WritesScoreMaps(t *testing.T) {
	fs := newDataset(t, 2)
	opts := options{
		root:       testRoot,
		configPath: writeConfig(t, `{"camera_count": 2, "overlap_pairs": [[0, 1]], "score_format": "scores"}`),
	}

	s, err := run(context.Background(), fs, opts)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if s.Written != 2 || s.Skipped != 0 {
		t.Errorf("summary = %+v, want 2 written", *s)
	}

	for _, path := range []string{"scores_0/000000.npy", "scores_1/000000.npy"} {
		f, err := fs.Open(filepath.Join(testRoot, path))
		if err != nil {
			t.Fatalf("open %s: %v", path, err)
		}
		m, err := lidarfile.ReadScoreMapNPY(f)
		f.Close()
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if m.Height != 2 || m.Width != 3 || m.Classes != 6 {
			t.Errorf("%s shape = (%d, %d, %d), want (2, 3, 6)", path, m.Height, m.Width, m.Classes)
		}
		// The default groups cover all 19 channels, so each pixel's
		// class scores sum to one.
		scores, err := m.At(1, 2)
		if err != nil {
			t.Fatal(err)
		}
		var sum float64
		for _, v := range scores {
			sum += float64(v)
		}
		if math.Abs(sum-1) > 1e-5 {
			t.Errorf("%s pixel (1, 2) scores sum to %v, want 1", path, sum)
		}
	}

	for _, name := range fs.Files() {
		if strings.HasSuffix(name, ".tmp") {
			t.Errorf("temporary file %s left behind", name)
		}
	}
}

func TestRun_SkipsExisting(t *testing.T) {
	fs := newDataset(t, 1)
	opts := options{root: testRoot, configPath: writeConfig(t, `{"camera_count": 1, "overlap_pairs": []}`)}

	if _, err := run(context.Background(), fs, opts); err != nil {
		t.Fatalf("first run: %v", err)
	}
	s, err := run(context.Background(), fs, opts)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if s.Written != 0 || s.Skipped != 1 {
		t.Errorf("summary = %+v, want 1 skipped", *s)
	}

	opts.overwrite = true
	if s, err = run(context.Background(), fs, opts); err != nil {
		t.Fatalf("overwrite run: %v", err)
	}
	if s.Written != 1 {
		t.Errorf("summary = %+v, want 1 written with overwrite", *s)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		cameras int
		wantErr string
	}{
		{
			name:    "groups do not match class count",
			config:  `{"camera_count": 1, "overlap_pairs": [], "num_classes": 3}`,
			cameras: 1,
			wantErr: "class_groups",
		},
		{
			name:    "missing logits",
			config:  `{"camera_count": 2, "overlap_pairs": [[0, 1]]}`,
			cameras: 1,
			wantErr: "frame 000000",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newDataset(t, tt.cameras)
			_, err := run(context.Background(), fs, options{root: testRoot, configPath: writeConfig(t, tt.config)})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("run() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
