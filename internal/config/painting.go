package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/pointpainting/internal/painting"
	"github.com/banshee-data/pointpainting/internal/painting/segmentation"
)

// DefaultConfigPath is the path to the canonical painting defaults file.
const DefaultConfigPath = "config/painting.defaults.json"

// Score map input formats.
const (
	// ScoreFormatScores reads precomputed (H, W, K) class score maps.
	ScoreFormatScores = "scores"
	// ScoreFormatLogits reads raw (C, H, W) segmentation logits and remaps
	// them to K classes with ClassGroups.
	ScoreFormatLogits = "logits"
)

// PaintingConfig is the root configuration for a painting run. Every field
// is optional; the Get* methods supply defaults for fields left nil so
// partial files are safe.
type PaintingConfig struct {
	// Rig
	CameraCount        *int     `json:"camera_count,omitempty"`
	OverlapPairs       [][2]int `json:"overlap_pairs,omitempty"`
	RejectBehindCamera *bool    `json:"reject_behind_camera,omitempty"`

	// Classes
	NumClasses  *int     `json:"num_classes,omitempty"`
	ClassNames  []string `json:"class_names,omitempty"`
	ScoreFormat *string  `json:"score_format,omitempty"` // "scores" or "logits"
	ClassGroups [][]int  `json:"class_groups,omitempty"` // logit channels summed into each class

	// Dataset
	PointChannels *int    `json:"point_channels,omitempty"`
	OutputDir     *string `json:"output_dir,omitempty"` // relative to the dataset root

	// Execution
	FrameWorkers *int `json:"frame_workers,omitempty"`
}

// Helper functions to create pointers
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

func defaultClassGroups() [][]int {
	return segmentation.CityscapesGroups()
}

func defaultOverlapPairs() [][2]int {
	return [][2]int{{0, 1}, {0, 2}, {1, 3}, {2, 4}}
}

// EmptyPaintingConfig returns a PaintingConfig with all fields unset.
func EmptyPaintingConfig() *PaintingConfig {
	return &PaintingConfig{}
}

// DefaultPaintingConfig returns a config with every field set to its
// default value: the five-camera rig with six classes.
func DefaultPaintingConfig() *PaintingConfig {
	return &PaintingConfig{
		CameraCount:        ptrInt(5),
		OverlapPairs:       defaultOverlapPairs(),
		RejectBehindCamera: ptrBool(true),
		NumClasses:         ptrInt(painting.DefaultNumClasses),
		ClassNames:         append([]string(nil), painting.DefaultClassNames...),
		ScoreFormat:        ptrString(ScoreFormatScores),
		ClassGroups:        defaultClassGroups(),
		PointChannels:      ptrInt(6),
		OutputDir:          ptrString("painted_lidar"),
		FrameWorkers:       ptrInt(4),
	}
}

// LoadPaintingConfig loads a PaintingConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadPaintingConfig(path string) (*PaintingConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPaintingConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file
// cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *PaintingConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/painting/<pkg>/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadPaintingConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *PaintingConfig) Validate() error {
	if c.CameraCount != nil && *c.CameraCount <= 0 {
		return fmt.Errorf("camera_count must be positive, got %d", *c.CameraCount)
	}

	if c.NumClasses != nil && *c.NumClasses <= 0 {
		return fmt.Errorf("num_classes must be positive, got %d", *c.NumClasses)
	}

	if len(c.ClassNames) > 0 && len(c.ClassNames) != c.GetNumClasses() {
		return fmt.Errorf("class_names has %d entries, num_classes is %d", len(c.ClassNames), c.GetNumClasses())
	}

	if c.ScoreFormat != nil {
		switch *c.ScoreFormat {
		case "", ScoreFormatScores, ScoreFormatLogits:
		default:
			return fmt.Errorf("score_format must be %q or %q, got %q", ScoreFormatScores, ScoreFormatLogits, *c.ScoreFormat)
		}
	}

	if c.ClassGroups != nil {
		if len(c.ClassGroups) != c.GetNumClasses() {
			return fmt.Errorf("class_groups has %d groups, num_classes is %d", len(c.ClassGroups), c.GetNumClasses())
		}
		for i, g := range c.ClassGroups {
			if len(g) == 0 {
				return fmt.Errorf("class_groups[%d] is empty", i)
			}
			for _, ch := range g {
				if ch < 0 {
					return fmt.Errorf("class_groups[%d] has negative channel %d", i, ch)
				}
			}
		}
	}

	// The remapper emits one class per group, so the default Cityscapes
	// table only fits the default class count.
	if c.GetScoreFormat() == ScoreFormatLogits && len(c.GetClassGroups()) != c.GetNumClasses() {
		return fmt.Errorf("score_format %q needs class_groups with %d groups (one per class), got %d",
			ScoreFormatLogits, c.GetNumClasses(), len(c.GetClassGroups()))
	}

	if c.PointChannels != nil && *c.PointChannels < 4 {
		return fmt.Errorf("point_channels must be at least 4 (x, y, z, intensity), got %d", *c.PointChannels)
	}

	if c.FrameWorkers != nil && *c.FrameWorkers <= 0 {
		return fmt.Errorf("frame_workers must be positive, got %d", *c.FrameWorkers)
	}

	if _, err := c.Topology(); err != nil {
		return err
	}

	return nil
}

// GetCameraCount returns the camera_count value or the default.
func (c *PaintingConfig) GetCameraCount() int {
	if c.CameraCount == nil {
		return 5
	}
	return *c.CameraCount
}

// GetOverlapPairs returns the overlap_pairs value or the default. An
// explicitly empty list disables overlap halving.
func (c *PaintingConfig) GetOverlapPairs() [][2]int {
	if c.OverlapPairs == nil {
		return defaultOverlapPairs()
	}
	return c.OverlapPairs
}

// GetRejectBehindCamera returns the reject_behind_camera value or the default.
func (c *PaintingConfig) GetRejectBehindCamera() bool {
	if c.RejectBehindCamera == nil {
		return true
	}
	return *c.RejectBehindCamera
}

// GetNumClasses returns the num_classes value or the default.
func (c *PaintingConfig) GetNumClasses() int {
	if c.NumClasses == nil {
		return painting.DefaultNumClasses
	}
	return *c.NumClasses
}

// GetClassNames returns the class_names value, the default names when the
// class count matches them, or generated names otherwise.
func (c *PaintingConfig) GetClassNames() []string {
	if len(c.ClassNames) > 0 {
		return c.ClassNames
	}
	k := c.GetNumClasses()
	if k == len(painting.DefaultClassNames) {
		return append([]string(nil), painting.DefaultClassNames...)
	}
	names := make([]string, k)
	for i := range names {
		names[i] = fmt.Sprintf("class_%d", i)
	}
	return names
}

// GetScoreFormat returns the score_format value or the default.
func (c *PaintingConfig) GetScoreFormat() string {
	if c.ScoreFormat == nil || *c.ScoreFormat == "" {
		return ScoreFormatScores
	}
	return *c.ScoreFormat
}

// GetClassGroups returns the class_groups value or the default.
func (c *PaintingConfig) GetClassGroups() [][]int {
	if c.ClassGroups == nil {
		return defaultClassGroups()
	}
	return c.ClassGroups
}

// GetPointChannels returns the point_channels value or the default.
func (c *PaintingConfig) GetPointChannels() int {
	if c.PointChannels == nil {
		return 6
	}
	return *c.PointChannels
}

// GetOutputDir returns the output_dir value or the default.
func (c *PaintingConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "painted_lidar"
	}
	return *c.OutputDir
}

// GetFrameWorkers returns the frame_workers value or the default.
func (c *PaintingConfig) GetFrameWorkers() int {
	if c.FrameWorkers == nil {
		return 4
	}
	return *c.FrameWorkers
}

// Topology builds the validated camera topology.
func (c *PaintingConfig) Topology() (painting.Topology, error) {
	raw := c.GetOverlapPairs()
	pairs := make([]painting.OverlapPair, len(raw))
	for i, p := range raw {
		pairs[i] = painting.OverlapPair{A: p[0], B: p[1]}
	}
	return painting.NewTopology(c.GetCameraCount(), pairs)
}

// PainterOptions converts the configuration into painter options.
func (c *PaintingConfig) PainterOptions() (painting.Options, error) {
	topo, err := c.Topology()
	if err != nil {
		return painting.Options{}, err
	}
	return painting.Options{
		Topology:           topo,
		NumClasses:         c.GetNumClasses(),
		RejectBehindCamera: c.GetRejectBehindCamera(),
	}, nil
}
