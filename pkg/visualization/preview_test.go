package visualization

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/effigies/quickshear/internal/models"
	"github.com/effigies/quickshear/pkg/geometry"
	"github.com/effigies/quickshear/pkg/silhouette"
)

// newTestPreview builds a small preview fixture by hand: an 8x10x12 volume
// whose intensity rises with z, two outline cells near the top, and a shear
// line derived from a two-vertex hull with a buffer of one voxel.
func newTestPreview(t *testing.T) *Preview {
	t.Helper()

	nx, ny, nz := 8, 10, 12
	data := make([]float32, nx*ny*nz)
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				data[(z*ny+y)*nx+x] = float32(z)
			}
		}
	}
	vol, err := models.NewVolume(data, nx, ny, nz)
	if err != nil {
		t.Fatalf("failed to build volume: %v", err)
	}

	edges := silhouette.NewPlane(ny, nz)
	edges.Set(1, 10, true)
	edges.Set(2, 10, true)

	hull := []geometry.Point{{X: 2, Y: 3}, {X: 7, Y: 2}}
	line, err := geometry.NewShearLine(hull, 1)
	if err != nil {
		t.Fatalf("failed to derive shear line: %v", err)
	}

	return NewPreview(vol, models.FlipVector{}, edges, hull, line)
}

func TestRenderNativeSize(t *testing.T) {
	preview := newTestPreview(t)

	img, err := preview.Render(0)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != 10 || bounds.Dy() != 12 {
		t.Errorf("expected a 10x12 image, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestRenderOverlays(t *testing.T) {
	// With hull vertices (2,3) and (7,2) and a buffer of 1, the shear line
	// is z = 2.4 - 0.2y. Column 0 keeps everything from z=2 up and sheds
	// z=0 and z=1; the line pixel itself rounds to z=2.
	preview := newTestPreview(t)

	img, err := preview.Render(0)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	nz := 12

	// Anatomy outside every overlay stays greyscale.
	r, g, b, _ := img.At(5, nz-1-8).RGBA()
	if r != g || g != b {
		t.Errorf("expected grey anatomy at (5,8), got rgb (%d, %d, %d)", r, g, b)
	}
	if r == 0 {
		t.Error("expected nonzero intensity for a bright voxel")
	}

	// Sheared voxels carry a warm tint.
	r, g, b, _ = img.At(0, nz-1-0).RGBA()
	if r <= b {
		t.Errorf("expected warm tint in the sheared wedge, got rgb (%d, %d, %d)", r, g, b)
	}

	// Outline cells are green.
	r, g, b, _ = img.At(1, nz-1-10).RGBA()
	if g <= r {
		t.Errorf("expected green outline cell, got rgb (%d, %d, %d)", r, g, b)
	}

	// The hull chain is blue.
	r, g, b, _ = img.At(2, nz-1-3).RGBA()
	if b <= r {
		t.Errorf("expected blue hull vertex, got rgb (%d, %d, %d)", r, g, b)
	}

	// The shear line itself is yellow.
	r, g, b, _ = img.At(0, nz-1-2).RGBA()
	if r <= b || g <= b {
		t.Errorf("expected yellow shear line, got rgb (%d, %d, %d)", r, g, b)
	}
}

func TestRenderAppliesFlips(t *testing.T) {
	// Intensity rises with the storage y coordinate, so flipping the second
	// axis must mirror the image: the left edge becomes the bright side.
	nx, ny, nz := 4, 10, 6
	data := make([]float32, nx*ny*nz)
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				data[(z*ny+y)*nx+x] = float32(y)
			}
		}
	}
	vol, err := models.NewVolume(data, nx, ny, nz)
	if err != nil {
		t.Fatalf("failed to build volume: %v", err)
	}
	line := geometry.ShearLine{Slope: 0, Intercept: -1}

	preview := NewPreview(vol, models.FlipVector{false, true, false}, nil, nil, line)
	img, err := preview.Render(0)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	left, _, _, _ := img.At(0, 0).RGBA()
	right, _, _, _ := img.At(ny-1, 0).RGBA()
	if left <= right {
		t.Errorf("expected the flip to move the bright side left, got %d vs %d", left, right)
	}
}

func TestRenderScaled(t *testing.T) {
	preview := newTestPreview(t)

	img, err := preview.Render(20)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != 20 || bounds.Dy() != 24 {
		t.Errorf("expected a 20x24 image, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestRenderFlatVolume(t *testing.T) {
	// A constant slice has no intensity range; rendering must still succeed.
	vol, err := models.NewVolume(nil, 4, 4, 4)
	if err != nil {
		t.Fatalf("failed to build volume: %v", err)
	}
	line := geometry.ShearLine{Slope: 0, Intercept: -1}

	preview := NewPreview(vol, models.FlipVector{}, nil, nil, line)
	img, err := preview.Render(0)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 4 {
		t.Errorf("unexpected bounds %v", img.Bounds())
	}
}

func TestRenderErrors(t *testing.T) {
	line := geometry.ShearLine{Slope: 0, Intercept: -1}

	t.Run("nil volume", func(t *testing.T) {
		preview := NewPreview(nil, models.FlipVector{}, nil, nil, line)
		if _, err := preview.Render(0); err == nil {
			t.Error("expected an error for a missing volume")
		}
	})

	t.Run("negative width", func(t *testing.T) {
		vol, _ := models.NewVolume(nil, 4, 4, 4)
		preview := NewPreview(vol, models.FlipVector{}, nil, nil, line)
		if _, err := preview.Render(-1); err == nil {
			t.Error("expected an error for a negative width")
		}
	})

	t.Run("mismatched outline", func(t *testing.T) {
		vol, _ := models.NewVolume(nil, 4, 4, 4)
		preview := NewPreview(vol, models.FlipVector{}, silhouette.NewPlane(3, 3), nil, line)
		if _, err := preview.Render(0); err == nil {
			t.Error("expected an error for an outline plane of the wrong shape")
		}
	})
}

func TestSaveWritesPNG(t *testing.T) {
	preview := newTestPreview(t)
	path := filepath.Join(t.TempDir(), "preview.png")

	if err := preview.Save(path, 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open saved preview: %v", err)
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("saved preview is not a valid PNG: %v", err)
	}
	if img.Bounds().Dx() != 10 || img.Bounds().Dy() != 12 {
		t.Errorf("expected a 10x12 image, got %v", img.Bounds())
	}
}

func TestSaveRejectsBadPath(t *testing.T) {
	preview := newTestPreview(t)

	err := preview.Save(filepath.Join(t.TempDir(), "missing", "preview.png"), 0)
	if err == nil {
		t.Error("expected an error when the target directory does not exist")
	}
}
