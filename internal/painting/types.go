package painting

// GeometryChannels is the number of raw LiDAR channels copied into every
// painted point: x, y, z, intensity and elongation.
const GeometryChannels = 5

// DefaultNumClasses is the number of semantic classes produced by the
// default score remapping.
const DefaultNumClasses = 6

// DefaultClassNames lists the semantic classes in score-vector order.
var DefaultClassNames = []string{
	"background",
	"bicycle",
	"vehicle",
	"person",
	"rider",
	"motorcycle",
}

// Point is a raw LiDAR return in the sensor frame.
type Point struct {
	X          float32
	Y          float32
	Z          float32
	Intensity  float32
	Elongation float32 // reserved channel; zero when the source has only 4 channels
}

// PointFromRow builds a Point from one row of a flat point buffer. Rows
// shorter than GeometryChannels leave the missing channels at zero and
// extra channels are ignored.
func PointFromRow(row []float32) Point {
	var ch [GeometryChannels]float32
	copy(ch[:], row)
	return Point{X: ch[0], Y: ch[1], Z: ch[2], Intensity: ch[3], Elongation: ch[4]}
}

// Channels returns the geometry channels in storage order.
func (p Point) Channels() [GeometryChannels]float32 {
	return [GeometryChannels]float32{p.X, p.Y, p.Z, p.Intensity, p.Elongation}
}

// AugmentedPoint is a retained LiDAR point with its fused class scores
// appended. It is produced once per frame and never mutated.
type AugmentedPoint struct {
	Point
	Scores []float64
}

// Row flattens the point into GeometryChannels+len(Scores) values, the
// layout consumed by the detector.
func (p AugmentedPoint) Row() []float64 {
	row := make([]float64, 0, GeometryChannels+len(p.Scores))
	for _, c := range p.Channels() {
		row = append(row, float64(c))
	}
	return append(row, p.Scores...)
}

// ArgMax returns the index of the highest fused score, or -1 when the point
// carries no scores. Ties resolve to the lowest class index.
func (p AugmentedPoint) ArgMax() int {
	best := -1
	for k, s := range p.Scores {
		if best < 0 || s > p.Scores[best] {
			best = k
		}
	}
	return best
}

// Frame bundles everything needed to paint one LiDAR sweep. Score maps are
// indexed by camera and must line up with Calibration.Cameras.
type Frame struct {
	ID          string
	Points      []Point
	Calibration *Calibration
	ScoreMaps   []*ClassScoreMap
}
