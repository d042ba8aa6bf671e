// Package silhouette projects a brain mask onto the sagittal plane and
// extracts the outline pixels that feed the convex hull.
package silhouette

import (
	"github.com/effigies/quickshear/internal/models"
	"github.com/effigies/quickshear/pkg/geometry"
)

// Plane is a binary grid over the sagittal plane. Cells are indexed (y, z)
// with y the anterior-posterior axis and z the inferior-superior axis, stored
// y-fastest to match the volume layout it is projected from.
type Plane struct {
	Bits []bool
	Ny   int
	Nz   int
}

// NewPlane allocates a cleared ny * nz plane.
func NewPlane(ny, nz int) *Plane {
	return &Plane{Bits: make([]bool, ny*nz), Ny: ny, Nz: nz}
}

// At reports the cell at (y, z).
func (p *Plane) At(y, z int) bool {
	return p.Bits[z*p.Ny+y]
}

// Set assigns the cell at (y, z).
func (p *Plane) Set(y, z int, v bool) {
	p.Bits[z*p.Ny+y] = v
}

// Count returns the number of set cells.
func (p *Plane) Count() int {
	n := 0
	for _, b := range p.Bits {
		if b {
			n++
		}
	}
	return n
}

// Project collapses a volume along its hemispheric axis: a plane cell is set
// when any voxel in its sagittal column is nonzero. The volume must already be
// in canonical orientation for the plane axes to mean (anterior-posterior,
// inferior-superior).
func Project(v *models.Volume) *Plane {
	p := NewPlane(v.Ny, v.Nz)
	for z := 0; z < v.Nz; z++ {
		for y := 0; y < v.Ny; y++ {
			for x := 0; x < v.Nx; x++ {
				if v.At(x, y, z) != 0 {
					p.Set(y, z, true)
					break
				}
			}
		}
	}
	return p
}

// Edges runs 4-neighbor edge detection over the plane, treating it as a torus
// so that neighbors wrap at the grid borders. A cell is an edge cell when
// 4*b - (sum of its four neighbors) is nonzero: set cells with at least one
// unset neighbor, and unset cells with at least one set neighbor. Fully
// interior cells and cells with no set neighbor drop out, so a uniform plane
// produces no edges. The one-cell halo outside the silhouette is part of the
// outline by construction and feeds the hull alongside the boundary cells.
func (p *Plane) Edges() *Plane {
	e := NewPlane(p.Ny, p.Nz)
	for z := 0; z < p.Nz; z++ {
		up := (z + 1) % p.Nz
		down := (z - 1 + p.Nz) % p.Nz
		for y := 0; y < p.Ny; y++ {
			right := (y + 1) % p.Ny
			left := (y - 1 + p.Ny) % p.Ny

			neighbors := 0
			if p.At(left, z) {
				neighbors++
			}
			if p.At(right, z) {
				neighbors++
			}
			if p.At(y, down) {
				neighbors++
			}
			if p.At(y, up) {
				neighbors++
			}

			center := 0
			if p.At(y, z) {
				center = 4
			}
			e.Set(y, z, center-neighbors != 0)
		}
	}
	return e
}

// Points lists the set cells as hull input, X carrying the anterior-posterior
// index and Y the inferior-superior index, in (X, Y) ascending scan order.
func (p *Plane) Points() []geometry.Point {
	pts := make([]geometry.Point, 0, p.Count())
	for y := 0; y < p.Ny; y++ {
		for z := 0; z < p.Nz; z++ {
			if p.At(y, z) {
				pts = append(pts, geometry.Point{X: y, Y: z})
			}
		}
	}
	return pts
}
