package geometry

import (
	"errors"
)

var (
	// ErrDegenerateHull is returned when the lower convex hull has fewer than
	// two vertices, so no shear line can be derived from it. This happens when
	// the silhouette edge contains fewer than two distinct points, typically
	// because the brain mask is empty or a single voxel.
	ErrDegenerateHull = errors.New("convex hull has fewer than two vertices")

	// ErrVerticalSegment is returned when the leading hull segment has zero
	// anterior-posterior extent, which would make the shear slope infinite.
	ErrVerticalSegment = errors.New("leading hull segment is vertical")
)

// ShearLine is the cut boundary on the sagittal plane, y = x*Slope +
// Intercept, with x an anterior-posterior index and y an inferior-superior
// index. Voxels strictly below the line are removed.
type ShearLine struct {
	Slope     float64
	Intercept float64
}

// NewShearLine derives the cut line from the first segment of a lower convex
// hull. The slope is the segment's rise over run; the intercept anchors the
// line at the hull's first vertex and then lowers it by buffer voxels, moving
// the cut away from the brain boundary so that the nearest hull point keeps at
// least that much vertical clearance.
//
// The hull must have at least two vertices and its leading segment must not be
// vertical; otherwise ErrDegenerateHull or ErrVerticalSegment is returned.
func NewShearLine(hull []Point, buffer float64) (ShearLine, error) {
	if len(hull) < 2 {
		return ShearLine{}, ErrDegenerateHull
	}
	run := hull[1].X - hull[0].X
	if run == 0 {
		return ShearLine{}, ErrVerticalSegment
	}
	slope := float64(hull[1].Y-hull[0].Y) / float64(run)
	intercept := float64(hull[0].Y) - float64(hull[0].X)*slope - buffer
	return ShearLine{Slope: slope, Intercept: intercept}, nil
}

// YAt evaluates the line at anterior-posterior index x.
func (l ShearLine) YAt(x int) float64 {
	return float64(x)*l.Slope + l.Intercept
}

// CutDepth returns how many inferior-superior voxels fall strictly below the
// line at anterior-posterior index x, clamped to [0, nz]. The line height is
// truncated toward zero, so a height in (0, 1) removes nothing.
func (l ShearLine) CutDepth(x, nz int) int {
	v := l.YAt(x)
	if v <= 0 {
		return 0
	}
	depth := int(v)
	if depth > nz {
		depth = nz
	}
	return depth
}

// KeepMask rasterizes the line over an nx * ny * nz volume in canonical
// orientation (x hemispheric, y anterior-posterior, z inferior-superior,
// first axis fastest). The returned slice holds true for voxels to keep and
// false for voxels below the line, uniformly across the hemispheric axis.
func (l ShearLine) KeepMask(nx, ny, nz int) []bool {
	mask := make([]bool, nx*ny*nz)
	for i := range mask {
		mask[i] = true
	}
	for y := 0; y < ny; y++ {
		depth := l.CutDepth(y, nz)
		for z := 0; z < depth; z++ {
			base := (z*ny + y) * nx
			for x := 0; x < nx; x++ {
				mask[base+x] = false
			}
		}
	}
	return mask
}
