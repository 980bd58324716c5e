// Package bevplot renders bird's-eye-view images of painted clouds.
package bevplot

import (
	"context"
	"fmt"
	"image/color"
	"path/filepath"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/pointpainting/internal/fsutil"
	"github.com/banshee-data/pointpainting/internal/painting"
	"github.com/banshee-data/pointpainting/internal/security"
)

// BEVPlotter writes one PNG per painted frame with the retained points
// drawn from above (x forward, y left) and coloured by their top class.
type BEVPlotter struct {
	fs         fsutil.FileSystem
	outputDir  string
	classNames []string
	palette    []color.Color
	// Range limits both axes to [-Range, Range] metres; zero autoscales.
	Range float64
}

// NewBEVPlotter returns a plotter writing into outputDir.
func NewBEVPlotter(fs fsutil.FileSystem, outputDir string, classNames []string) *BEVPlotter {
	return &BEVPlotter{
		fs:         fs,
		outputDir:  outputDir,
		classNames: classNames,
		palette:    Palette(len(classNames)),
	}
}

// Palette returns n distinguishable colours. Class 0 (background) is grey;
// the others are spread evenly around the HCL hue circle.
func Palette(n int) []color.Color {
	out := make([]color.Color, n)
	for i := range out {
		if i == 0 {
			out[i] = colorful.Color{R: 0.6, G: 0.6, B: 0.6}
			continue
		}
		hue := 360 * float64(i-1) / float64(max(n-1, 1))
		out[i] = colorful.Hcl(hue, 0.8, 0.6).Clamped()
	}
	return out
}

// Path returns the PNG path for a frame.
func (b *BEVPlotter) Path(frameID string) string {
	return filepath.Join(b.outputDir, security.SanitizeFilename(frameID)+"_bev.png")
}

// FramePainted renders res. It satisfies pipeline.Sink.
func (b *BEVPlotter) FramePainted(_ context.Context, res *painting.Result) error {
	p, err := b.Plot(res.FrameID, res.Points)
	if err != nil {
		return err
	}
	if err := b.fs.MkdirAll(b.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create plot dir: %w", err)
	}

	wt, err := p.WriterTo(8*vg.Inch, 8*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render bev plot: %w", err)
	}
	w, err := b.fs.Create(b.Path(res.FrameID))
	if err != nil {
		return fmt.Errorf("create bev plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		w.Close()
		return fmt.Errorf("write bev plot: %w", err)
	}
	return w.Close()
}

// Plot builds the plot for a painted cloud without writing it.
func (b *BEVPlotter) Plot(frameID string, points []painting.AugmentedPoint) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Frame %s (%d painted points)", frameID, len(points))
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Add(plotter.NewGrid())

	byClass := make([]plotter.XYs, len(b.classNames))
	for _, pt := range points {
		k := pt.ArgMax()
		if k < 0 || k >= len(byClass) {
			continue
		}
		byClass[k] = append(byClass[k], plotter.XY{X: float64(pt.X), Y: float64(pt.Y)})
	}

	for k, xys := range byClass {
		if len(xys) == 0 {
			continue
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("class %s scatter: %w", b.classNames[k], err)
		}
		s.GlyphStyle.Color = b.palette[k]
		s.GlyphStyle.Radius = vg.Points(1)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
		p.Legend.Add(fmt.Sprintf("%s (%d)", b.classNames[k], len(xys)), s)
	}
	p.Legend.Top = true

	if b.Range > 0 {
		p.X.Min, p.X.Max = -b.Range, b.Range
		p.Y.Min, p.Y.Max = -b.Range, b.Range
	}
	return p, nil
}
