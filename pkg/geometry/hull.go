// Package geometry implements the 2D computational geometry at the heart of
// the defacer: the lower convex hull of the mask silhouette's edge pixels and
// the shear line derived from the hull's leading segment.
package geometry

import (
	"sort"
)

// Point is an integer coordinate on the sagittal silhouette grid. X runs along
// the anterior-posterior axis (0 = most anterior slice), Y along the
// inferior-superior axis (0 = most inferior slice).
type Point struct {
	X, Y int
}

// Cross returns the z component of the cross product (a-o) x (b-o). Positive
// means the turn o->a->b is counter-clockwise, negative clockwise, zero
// collinear. Computed in int64; silhouette coordinates are far below the
// overflow range.
func Cross(o, a, b Point) int64 {
	return int64(a.X-o.X)*int64(b.Y-o.Y) - int64(a.Y-o.Y)*int64(b.X-o.X)
}

// LowerHull computes the lower half of the convex hull of the given point set
// using Andrew's monotone chain sweep.
//
// The input may arrive in any order; the sweep sorts its own copy
// lexicographically by (X, Y) ascending. Walking left to right, the working
// hull pops its last point while the turn through it is not strictly
// counter-clockwise (cross <= 0), so exactly-collinear points are excluded and
// only strictly convex vertices survive.
//
// Fewer than two distinct input points produce a hull shorter than two
// vertices; callers deriving a slope from the result must treat that, and a
// vertical leading segment, as degenerate (see NewShearLine).
//
// Runs in O(n log n) time, dominated by the sort; the sweep itself is
// amortized O(n) since each point is pushed once and popped at most once.
func LowerHull(points []Point) []Point {
	if len(points) == 0 {
		return nil
	}

	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	hull := make([]Point, 0, len(sorted))
	for _, p := range sorted {
		for len(hull) >= 2 && Cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull
}
