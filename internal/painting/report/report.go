// Package report renders an HTML summary of a stored painting run.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/pointpainting/internal/painting"
	"github.com/banshee-data/pointpainting/internal/painting/storage/sqlite"
)

// Totals aggregates the painted frames of a run.
type Totals struct {
	Frames         int
	Failed         int
	InputPoints    int
	RetainedPoints int
	ClassHistogram []int
	// CameraVisible and CameraBehind are indexed by camera.
	CameraVisible []int
	CameraBehind  []int
	// OverlapPoints is keyed by the normalized pair, so (1,0) and (0,1)
	// accumulate together.
	OverlapPoints map[painting.OverlapPair]int
	FrameIDs      []string
	FrameRetained []int
}

// Aggregate sums the frame records of one run. Failed frames are counted
// but contribute no statistics.
func Aggregate(frames []*sqlite.FrameRecord) Totals {
	t := Totals{OverlapPoints: make(map[painting.OverlapPair]int)}
	for _, f := range frames {
		if f.Error != "" {
			t.Failed++
			continue
		}
		t.Frames++
		t.InputPoints += f.InputPoints
		t.RetainedPoints += f.RetainedPoints
		t.FrameIDs = append(t.FrameIDs, f.FrameID)
		t.FrameRetained = append(t.FrameRetained, f.RetainedPoints)

		t.ClassHistogram = addInto(t.ClassHistogram, f.ClassHistogram)
		for _, c := range f.Cameras {
			t.CameraVisible = growTo(t.CameraVisible, c.Camera+1)
			t.CameraBehind = growTo(t.CameraBehind, c.Camera+1)
			t.CameraVisible[c.Camera] += c.Visible
			t.CameraBehind[c.Camera] += c.BehindCamera
		}
		for _, o := range f.Overlaps {
			t.OverlapPoints[o.Pair.Normalized()] += o.Points
		}
	}
	return t
}

// RetentionRatio is the fraction of input points that were painted.
func (t Totals) RetentionRatio() float64 {
	if t.InputPoints == 0 {
		return 0
	}
	return float64(t.RetainedPoints) / float64(t.InputPoints)
}

func growTo(s []int, n int) []int {
	for len(s) < n {
		s = append(s, 0)
	}
	return s
}

func addInto(dst, src []int) []int {
	dst = growTo(dst, len(src))
	for i, v := range src {
		dst[i] += v
	}
	return dst
}

// Render writes the run report page.
func Render(w io.Writer, run *sqlite.Run, frames []*sqlite.FrameRecord, classNames []string) error {
	t := Aggregate(frames)
	subtitle := fmt.Sprintf("run=%s status=%s frames=%d failed=%d retained=%.1f%%",
		run.RunID, run.Status, t.Frames, t.Failed, 100*t.RetentionRatio())
	if d := run.Duration(); d > 0 {
		subtitle += " duration=" + d.Round(time.Millisecond).String()
	}

	page := components.NewPage()
	page.PageTitle = "Painting run " + run.RunID
	page.AddCharts(
		classChart(t, classNames, subtitle),
		cameraChart(t),
		overlapChart(t),
		retainedChart(t),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

func classChart(t Totals, classNames []string, subtitle string) *charts.Bar {
	x := make([]string, len(t.ClassHistogram))
	y := make([]opts.BarData, len(t.ClassHistogram))
	for k, n := range t.ClassHistogram {
		if k < len(classNames) {
			x[k] = classNames[k]
		} else {
			x[k] = fmt.Sprintf("class_%d", k)
		}
		y[k] = opts.BarData{Value: n}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Painted points by top class", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).AddSeries("points", y,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)
	return bar
}

func cameraChart(t Totals) *charts.Bar {
	x := make([]string, len(t.CameraVisible))
	visible := make([]opts.BarData, len(t.CameraVisible))
	behind := make([]opts.BarData, len(t.CameraVisible))
	for c := range t.CameraVisible {
		x[c] = fmt.Sprintf("camera %d", c)
		visible[c] = opts.BarData{Value: t.CameraVisible[c]}
		behind[c] = opts.BarData{Value: t.CameraBehind[c]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Per-camera visibility"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("visible", visible).
		AddSeries("in bounds, behind camera", behind)
	return bar
}

func overlapChart(t Totals) *charts.Bar {
	keys := make([]painting.OverlapPair, 0, len(t.OverlapPoints))
	for p := range t.OverlapPoints {
		keys = append(keys, p)
	}
	pairs := painting.Topology{Pairs: keys}.SortedPairs()
	x := make([]string, len(pairs))
	y := make([]opts.BarData, len(pairs))
	for i, p := range pairs {
		x[i] = p.String()
		y[i] = opts.BarData{Value: t.OverlapPoints[p]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Points halved per overlap pair"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).AddSeries("points", y)
	return bar
}

func retainedChart(t Totals) *charts.Line {
	y := make([]opts.LineData, len(t.FrameRetained))
	for i, n := range t.FrameRetained {
		y[i] = opts.LineData{Value: n}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Painted points per frame"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(t.FrameIDs).AddSeries("retained", y)
	return line
}
