// Package visualization renders midsagittal quality-control images of
// defaced volumes, overlaying the mask outline, its lower convex hull, and
// the shear line on the anatomical data so a reviewer can confirm the cut at
// a glance.
package visualization

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"

	"github.com/lucasb-eyer/go-colorful"
	xdraw "golang.org/x/image/draw"

	"github.com/effigies/quickshear/internal/models"
	"github.com/effigies/quickshear/pkg/geometry"
	"github.com/effigies/quickshear/pkg/silhouette"
)

// Preview renders the midsagittal plane of a defaced volume with the cut
// geometry overlaid.
type Preview struct {
	// volume holds the anatomical data in its storage frame
	volume *models.Volume

	// flips maps canonical coordinates onto the storage frame
	flips models.FlipVector

	// edges is the mask silhouette outline in the canonical frame
	edges *silhouette.Plane

	// hull and line are the cut geometry in canonical coordinates
	hull []geometry.Point
	line geometry.ShearLine
}

// NewPreview creates a preview renderer for a defacing result.
func NewPreview(vol *models.Volume, flips models.FlipVector, edges *silhouette.Plane,
	hull []geometry.Point, line geometry.ShearLine) *Preview {
	return &Preview{
		volume: vol,
		flips:  flips,
		edges:  edges,
		hull:   hull,
		line:   line,
	}
}

// Render draws the preview and scales it to the requested pixel width,
// preserving the aspect ratio. A width of zero keeps the native resolution,
// one pixel per sagittal grid cell. The image is oriented radiologically
// sensibly for a sagittal view: anterior on the left, superior on top.
func (p *Preview) Render(width int) (image.Image, error) {
	if p.volume == nil {
		return nil, fmt.Errorf("no volume to render")
	}
	if width < 0 {
		return nil, fmt.Errorf("invalid preview width %d", width)
	}
	nx, ny, nz := p.volume.Nx, p.volume.Ny, p.volume.Nz
	if p.edges != nil && (p.edges.Ny != ny || p.edges.Nz != nz) {
		return nil, fmt.Errorf("outline plane is %dx%d, volume plane is %dx%d",
			p.edges.Ny, p.edges.Nz, ny, nz)
	}

	// Window the midsagittal slice to its own intensity range.
	mid := nx / 2
	slice := make([]float64, ny*nz)
	lo, hi := math.Inf(1), math.Inf(-1)
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			sx, sy, sz := p.flips.MapIndex(mid, y, z, nx, ny, nz)
			v := float64(p.volume.At(sx, sy, sz))
			slice[z*ny+y] = v
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	window := hi - lo
	if window == 0 {
		window = 1
	}

	// The cut tint ramps in hue from the anterior edge to the last sheared
	// column, so depth into the wedge is visible without a legend.
	lastCut := 0
	for y := 0; y < ny; y++ {
		if p.line.CutDepth(y, nz) > 0 {
			lastCut = y
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, ny, nz))
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			val := (slice[z*ny+y] - lo) / window
			var c colorful.Color
			if z < p.line.CutDepth(y, nz) {
				hue := 10.0
				if lastCut > 0 {
					hue += 35 * float64(y) / float64(lastCut)
				}
				c = colorful.Hsv(hue, 0.75, 0.25+0.75*val)
			} else {
				c = colorful.Hsv(0, 0, val)
			}
			img.Set(y, nz-1-z, c)
		}
	}

	if p.edges != nil {
		outline := colorful.Hsv(130, 0.85, 1)
		for z := 0; z < nz; z++ {
			for y := 0; y < ny; y++ {
				if p.edges.At(y, z) {
					img.Set(y, nz-1-z, outline)
				}
			}
		}
	}

	hullColor := colorful.Hsv(200, 0.9, 1)
	for i := 0; i+1 < len(p.hull); i++ {
		drawSegment(img, p.hull[i], p.hull[i+1], nz, hullColor)
	}

	lineColor := colorful.Hsv(55, 1, 1)
	for y := 0; y < ny; y++ {
		z := int(math.Round(p.line.YAt(y)))
		if z >= 0 && z < nz {
			img.Set(y, nz-1-z, lineColor)
		}
	}

	if width == 0 || width == ny {
		return img, nil
	}
	height := nz * width / ny
	if height < 1 {
		height = 1
	}
	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return scaled, nil
}

// drawSegment rasterizes a hull edge by stepping along its longer axis.
func drawSegment(img *image.RGBA, a, b geometry.Point, nz int, c colorful.Color) {
	dx, dy := b.X-a.X, b.Y-a.Y
	steps := dx
	if steps < 0 {
		steps = -steps
	}
	if dy > steps {
		steps = dy
	} else if -dy > steps {
		steps = -dy
	}
	if steps == 0 {
		steps = 1
	}
	for s := 0; s <= steps; s++ {
		t := float64(s) / float64(steps)
		x := a.X + int(math.Round(t*float64(dx)))
		y := a.Y + int(math.Round(t*float64(dy)))
		if y >= 0 && y < nz {
			img.Set(x, nz-1-y, c)
		}
	}
}

// Save renders the preview at the given width and writes it as a PNG file.
func (p *Preview) Save(path string, width int) error {
	img, err := p.Render(width)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}
