package painting

// BuildPaintedCloud joins point geometry with the fused scores. Points that
// no camera sees are left out, so the result is never longer than points.
// Input order is preserved.
func BuildPaintedCloud(points []Point, fused FusionResult) []AugmentedPoint {
	out := make([]AugmentedPoint, 0, fused.RetainedCount)
	for i, p := range points {
		if i >= len(fused.Retained) || !fused.Retained[i] {
			continue
		}
		out = append(out, AugmentedPoint{Point: p, Scores: fused.Scores[i]})
	}
	return out
}
