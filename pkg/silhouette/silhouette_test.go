package silhouette

import (
	"reflect"
	"testing"

	"github.com/effigies/quickshear/internal/models"
	"github.com/effigies/quickshear/pkg/geometry"
)

func TestProject(t *testing.T) {
	vol, err := models.NewVolume(nil, 2, 3, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vol.Set(0, 0, 0, 1)    // sets plane cell (0, 0)
	vol.Set(1, 2, 1, -0.5) // negative values still count as nonzero
	vol.Set(0, 2, 1, 2)    // same column as above

	plane := Project(vol)
	if plane.Ny != 3 || plane.Nz != 2 {
		t.Fatalf("expected 3x2 plane, got %dx%d", plane.Ny, plane.Nz)
	}

	expected := map[[2]int]bool{
		{0, 0}: true,
		{2, 1}: true,
	}
	for z := 0; z < plane.Nz; z++ {
		for y := 0; y < plane.Ny; y++ {
			if got := plane.At(y, z); got != expected[[2]int{y, z}] {
				t.Errorf("cell (%d,%d): expected %v, got %v", y, z, expected[[2]int{y, z}], got)
			}
		}
	}
	if got := plane.Count(); got != 2 {
		t.Errorf("expected 2 set cells, got %d", got)
	}
}

func TestEdgesUniformPlanes(t *testing.T) {
	clear := NewPlane(4, 4)
	if got := clear.Edges().Count(); got != 0 {
		t.Errorf("expected no edges on an empty plane, got %d", got)
	}

	full := NewPlane(4, 4)
	for i := range full.Bits {
		full.Bits[i] = true
	}
	// On a torus every cell of a full plane has four set neighbors.
	if got := full.Edges().Count(); got != 0 {
		t.Errorf("expected no edges on a fully set plane, got %d", got)
	}
}

func TestEdgesSingleCell(t *testing.T) {
	plane := NewPlane(5, 5)
	plane.Set(2, 2, true)

	edges := plane.Edges()
	expected := map[[2]int]bool{
		{2, 2}: true, // the cell itself
		{1, 2}: true, // and its four-neighbor halo
		{3, 2}: true,
		{2, 1}: true,
		{2, 3}: true,
	}
	for z := 0; z < 5; z++ {
		for y := 0; y < 5; y++ {
			if got := edges.At(y, z); got != expected[[2]int{y, z}] {
				t.Errorf("cell (%d,%d): expected edge=%v, got %v", y, z, expected[[2]int{y, z}], got)
			}
		}
	}
}

func TestEdgesBlockInterior(t *testing.T) {
	plane := NewPlane(5, 5)
	for z := 1; z <= 3; z++ {
		for y := 1; y <= 3; y++ {
			plane.Set(y, z, true)
		}
	}

	edges := plane.Edges()
	if edges.At(2, 2) {
		t.Error("expected block interior not to be an edge")
	}
	// 8 block border cells plus a 12-cell orthogonal halo.
	if got := edges.Count(); got != 20 {
		t.Errorf("expected 20 edge cells, got %d", got)
	}
	for _, c := range [][2]int{{1, 1}, {3, 3}, {2, 1}, {0, 2}, {4, 2}, {2, 0}, {2, 4}} {
		if !edges.At(c[0], c[1]) {
			t.Errorf("expected cell (%d,%d) to be an edge", c[0], c[1])
		}
	}
}

func TestEdgesWrapAtBorders(t *testing.T) {
	plane := NewPlane(4, 4)
	plane.Set(0, 0, true)

	edges := plane.Edges()
	expected := map[[2]int]bool{
		{0, 0}: true,
		{1, 0}: true,
		{0, 1}: true,
		{3, 0}: true, // wraps around the anterior-posterior axis
		{0, 3}: true, // wraps around the inferior-superior axis
	}
	for z := 0; z < 4; z++ {
		for y := 0; y < 4; y++ {
			if got := edges.At(y, z); got != expected[[2]int{y, z}] {
				t.Errorf("cell (%d,%d): expected edge=%v, got %v", y, z, expected[[2]int{y, z}], got)
			}
		}
	}
}

func TestPointsScanOrder(t *testing.T) {
	plane := NewPlane(3, 3)
	plane.Set(2, 0, true)
	plane.Set(0, 1, true)
	plane.Set(2, 2, true)
	plane.Set(1, 1, true)

	got := plane.Points()
	expected := []geometry.Point{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 2, Y: 0}, {X: 2, Y: 2}}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("expected points %v, got %v", expected, got)
	}
}
