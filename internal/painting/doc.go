// Package painting fuses per-pixel semantic class scores from several
// calibrated cameras onto a LiDAR point cloud.
//
// Responsibilities: LiDAR→camera transform, rectified projection,
// visibility filtering, score sampling, overlap fusion between adjacent
// cameras, and assembly of the painted (augmented) cloud.
// Key types: Calibration, ClassScoreMap, Topology, Painter, AugmentedPoint.
//
// Dependency rule: this package performs no I/O. Calibration files, score
// maps and point files are loaded by the calibfile, lidarfile and dataset
// packages and handed over as in-memory values.
package painting
