// Package models holds the in-memory data model shared by the defacing
// pipeline: the voxel grid and the orientation flip vector. File-format
// concerns (headers, affines, encodings) live in pkg/nifti; these types
// carry only what the geometric core needs.
package models

import (
	"fmt"
)

// Volume is a 3D scalar field over a voxel grid.
type Volume struct {
	// Data is the voxel payload in NIfTI memory order: the first axis
	// varies fastest, so voxel (x, y, z) lives at (z*Ny+y)*Nx + x.
	Data []float32

	// Nx, Ny, Nz are the grid extents along the first, second and third
	// axis. In the canonical frame these are the left-right,
	// anterior-posterior and inferior-superior axes respectively.
	Nx, Ny, Nz int
}

// NewVolume builds a volume over the given grid, allocating the payload when
// data is nil. The element count must match the grid exactly; shape errors
// here are programming errors upstream (a loader must never produce them).
func NewVolume(data []float32, nx, ny, nz int) (*Volume, error) {
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil, fmt.Errorf("invalid volume shape (%d, %d, %d)", nx, ny, nz)
	}
	n := nx * ny * nz
	if data == nil {
		data = make([]float32, n)
	} else if len(data) != n {
		return nil, fmt.Errorf("volume data has %d elements, shape (%d, %d, %d) needs %d",
			len(data), nx, ny, nz, n)
	}
	return &Volume{Data: data, Nx: nx, Ny: ny, Nz: nz}, nil
}

// Voxels returns the total number of voxels in the grid.
func (v *Volume) Voxels() int { return v.Nx * v.Ny * v.Nz }

// Index returns the flat offset of voxel (x, y, z).
func (v *Volume) Index(x, y, z int) int { return (z*v.Ny+y)*v.Nx + x }

// At returns the value at voxel (x, y, z).
func (v *Volume) At(x, y, z int) float32 { return v.Data[(z*v.Ny+y)*v.Nx+x] }

// Set stores a value at voxel (x, y, z).
func (v *Volume) Set(x, y, z int, val float32) { v.Data[(z*v.Ny+y)*v.Nx+x] = val }

// CountNonzero returns the number of voxels with a nonzero value.
func (v *Volume) CountNonzero() int {
	n := 0
	for _, val := range v.Data {
		if val != 0 {
			n++
		}
	}
	return n
}

// SameShape reports whether two volumes share the same grid extents.
func (v *Volume) SameShape(o *Volume) bool {
	return v.Nx == o.Nx && v.Ny == o.Ny && v.Nz == o.Nz
}

// ShapeString renders the grid extents as "(nx, ny, nz)" for messages.
func (v *Volume) ShapeString() string {
	return fmt.Sprintf("(%d, %d, %d)", v.Nx, v.Ny, v.Nz)
}

// Clone returns a deep copy of the volume.
func (v *Volume) Clone() *Volume {
	data := make([]float32, len(v.Data))
	copy(data, v.Data)
	return &Volume{Data: data, Nx: v.Nx, Ny: v.Ny, Nz: v.Nz}
}

// FlipVector records, per spatial axis, whether that axis was reversed to
// reach the canonical orientation. Flips are self-inverse: applying the same
// vector twice restores the original array.
type FlipVector [3]bool

// Any reports whether at least one axis is flagged.
func (f FlipVector) Any() bool { return f[0] || f[1] || f[2] }

// String renders the vector as e.g. "[x - z]", naming the flipped axes.
func (f FlipVector) String() string {
	names := [3]byte{'x', 'y', 'z'}
	out := []byte{'['}
	for i, flip := range f {
		if i > 0 {
			out = append(out, ' ')
		}
		if flip {
			out = append(out, names[i])
		} else {
			out = append(out, '-')
		}
	}
	return string(append(out, ']'))
}

// MapIndex translates voxel coordinates through the flip vector on a grid of
// the given extents. Because flips are self-inverse, the same mapping converts
// original coordinates to canonical ones and back.
func (f FlipVector) MapIndex(x, y, z, nx, ny, nz int) (int, int, int) {
	if f[0] {
		x = nx - 1 - x
	}
	if f[1] {
		y = ny - 1 - y
	}
	if f[2] {
		z = nz - 1 - z
	}
	return x, y, z
}

// Flipped returns a copy of the volume with the flagged axes reversed. The
// receiver is not modified.
func (v *Volume) Flipped(flips FlipVector) *Volume {
	if !flips.Any() {
		return v.Clone()
	}
	out := &Volume{Data: make([]float32, len(v.Data)), Nx: v.Nx, Ny: v.Ny, Nz: v.Nz}
	for z := 0; z < v.Nz; z++ {
		for y := 0; y < v.Ny; y++ {
			srcRow := (z*v.Ny + y) * v.Nx
			fx, fy, fz := flips.MapIndex(0, y, z, v.Nx, v.Ny, v.Nz)
			dstRow := (fz*v.Ny + fy) * v.Nx
			if flips[0] {
				for x := 0; x < v.Nx; x++ {
					out.Data[dstRow+fx-x] = v.Data[srcRow+x]
				}
			} else {
				copy(out.Data[dstRow:dstRow+v.Nx], v.Data[srcRow:srcRow+v.Nx])
			}
		}
	}
	return out
}
