// Package deface implements the Quickshear defacing pipeline: it reorients
// the brain mask into a canonical sagittal frame, outlines its silhouette,
// derives a shear line from the silhouette's lower convex hull, and zeroes
// every anatomical voxel below that line.
//
// The method follows "Quickshear Defacing for Neuroimages" by Schimke and
// Hale: because the face lies entirely anterior-inferior of the brain, a
// single plane clipped against the mask's lower convex hull separates facial
// features from brain tissue with a configurable safety margin.
package deface

import (
	"errors"
	"fmt"

	"github.com/effigies/quickshear/internal/logging"
	"github.com/effigies/quickshear/internal/models"
	"github.com/effigies/quickshear/pkg/geometry"
	"github.com/effigies/quickshear/pkg/nifti"
	"github.com/effigies/quickshear/pkg/orientation"
	"github.com/effigies/quickshear/pkg/silhouette"
)

// ErrShapeMismatch is returned when the anatomical image and the brain mask
// have different grid dimensions, so mask voxels cannot be matched to
// anatomical voxels.
var ErrShapeMismatch = errors.New("anatomical and mask images do not have the same dimensions")

// Params holds the defacing parameters.
type Params struct {
	// Buffer is the distance in voxels between the shear line and the nearest
	// vertex of the mask's convex hull. Larger values cut further from the
	// brain and leave more of the face intact.
	Buffer int

	// Hemisphere selects the direction of the first canonical axis. It only
	// fixes which way the sagittal projection is viewed; the cut itself spans
	// both hemispheres. The zero value means Right.
	Hemisphere orientation.Hemisphere

	// Logger receives progress and diagnostic output. Nil discards it.
	Logger *logging.Logger
}

// Result describes a completed defacing run.
type Result struct {
	// Line is the shear line in the canonical sagittal frame.
	Line geometry.ShearLine

	// Hull is the lower convex hull of the mask outline the line was derived
	// from.
	Hull []geometry.Point

	// Edges is the outline of the mask silhouette in the canonical frame,
	// kept for preview rendering.
	Edges *silhouette.Plane

	// AnatFlips is the flip vector that brought the anatomical image into the
	// canonical frame.
	AnatFlips models.FlipVector

	// Report collects statistics about the removed region.
	Report *Report
}

// Run defaces the anatomical image in place using the brain mask and returns
// the geometry and statistics of the cut. The two images must have identical
// grid dimensions; each may carry its own orientation, as long as both can be
// brought to the canonical frame by axis flips.
func Run(anat, mask *nifti.Image, params *Params) (*Result, error) {
	hemi := params.Hemisphere
	if hemi == 0 {
		hemi = orientation.Right
	}
	log := params.Logger

	if !anat.SameShape(mask) {
		return nil, fmt.Errorf("%w: anatomical %s, mask %s",
			ErrShapeMismatch, anat.ShapeString(), mask.ShapeString())
	}

	maskFlips, err := orientation.Flips(mask.Affine, hemi)
	if err != nil {
		return nil, fmt.Errorf("orienting mask: %w", err)
	}
	anatFlips, err := orientation.Flips(anat.Affine, hemi)
	if err != nil {
		return nil, fmt.Errorf("orienting anatomical image: %w", err)
	}
	log.Debugf("canonical frame %c-P-S: mask flips %v, anatomical flips %v",
		byte(hemi), maskFlips, anatFlips)

	canonicalMask := mask.Volume.Flipped(maskFlips)
	plane := silhouette.Project(canonicalMask)
	edges := plane.Edges()
	points := edges.Points()
	log.Debugf("sagittal silhouette %d cells, outline %d cells", plane.Count(), len(points))

	hull := geometry.LowerHull(points)
	line, err := geometry.NewShearLine(hull, float64(params.Buffer))
	if err != nil {
		return nil, fmt.Errorf("deriving shear line: %w", err)
	}
	log.Debugf("lower hull %d vertices, shear line slope %.4f intercept %.4f",
		len(hull), line.Slope, line.Intercept)

	keep := line.KeepMask(anat.Nx, anat.Ny, anat.Nz)
	report := newReport(points, hull, line, anat.Nx*anat.Ny*anat.Nz, canonicalMask.CountNonzero())
	applyKeepMask(anat, canonicalMask, keep, anatFlips, report)
	report.finish()

	if report.MaskRemoved > 0 {
		log.Warningf("%d brain mask voxels fall below the shear line; consider a smaller buffer or a better mask",
			report.MaskRemoved)
	}

	return &Result{
		Line:      line,
		Hull:      hull,
		Edges:     edges,
		AnatFlips: anatFlips,
		Report:    report,
	}, nil
}

// applyKeepMask zeroes every anatomical voxel whose canonical-frame position
// is excluded by the keep mask. The keep mask and the canonical mask volume
// live in the canonical frame; anatomical voxels are addressed through the
// anatomical flip vector, which is its own inverse, so the image itself never
// needs to be flipped.
func applyKeepMask(anat *nifti.Image, canonicalMask *models.Volume, keep []bool,
	anatFlips models.FlipVector, report *Report) {

	nx, ny, nz := anat.Nx, anat.Ny, anat.Nz
	idx := 0
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				if !keep[idx] {
					ox, oy, oz := anatFlips.MapIndex(x, y, z, nx, ny, nz)
					report.addRemoved(float64(anat.Volume.At(ox, oy, oz)))
					if canonicalMask.Data[idx] != 0 {
						report.MaskRemoved++
					}
					anat.ZeroVoxel(ox, oy, oz)
				}
				idx++
			}
		}
	}
}
