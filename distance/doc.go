// Package distance provides vector distance calculations.
//
// # Supported Metrics
//
//   - MetricCosine: Cosine distance over L2-normalized vectors (default)
//   - MetricL2: Squared Euclidean distance
//   - MetricDot: Dot product (inner product)
//
// # Usage
//
//	dist := distance.SquaredL2(a, b)
//	sim := distance.Dot(a, b)
//	normalized, ok := distance.NormalizeL2Copy(vec)
package distance
