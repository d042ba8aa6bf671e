package deface

import (
	"math"

	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/stat"

	"github.com/effigies/quickshear/internal/logging"
	"github.com/effigies/quickshear/pkg/geometry"
)

// maxIntensitySamples bounds the removed-voxel intensities retained for the
// summary statistics. Larger cuts fall back to reservoir sampling, so the
// report stays cheap on high-resolution scans.
const maxIntensitySamples = 4096

// Report collects statistics about a defacing run. Counts are exact; the
// intensity statistics are computed over at most maxIntensitySamples removed
// voxels.
type Report struct {
	// EdgeCells is the number of silhouette outline cells that fed the hull.
	EdgeCells int

	// HullVertices is the size of the lower convex hull.
	HullVertices int

	// Slope and Intercept restate the shear line the cut was rasterized from.
	Slope, Intercept float64

	// TotalVoxels is the size of the anatomical grid.
	TotalVoxels int

	// Removed counts the voxels zeroed by the cut.
	Removed int

	// RemovedNonzero counts removed voxels that carried a nonzero intensity,
	// i.e. actual image content rather than background.
	RemovedNonzero int

	// RemovedFraction is Removed over TotalVoxels.
	RemovedFraction float64

	// MaskVoxels is the total number of voxels in the brain mask.
	MaskVoxels int

	// MaskRemoved counts brain mask voxels that fell below the shear line.
	// A run with a non-negative buffer keeps this at zero; anything else
	// means brain tissue was cut.
	MaskRemoved int

	// Clearance is the smallest vertical distance in voxels between an
	// outline cell and the shear line. It equals the configured buffer when
	// the rasterization is sound.
	Clearance float64

	// MeanIntensity, StdDevIntensity, and MaxIntensity summarize the removed
	// voxel values before zeroing. The maximum is exact; mean and standard
	// deviation come from the sample.
	MeanIntensity   float64
	StdDevIntensity float64
	MaxIntensity    float64

	samples []float64
	rng     fastrand.RNG
}

func newReport(points []geometry.Point, hull []geometry.Point, line geometry.ShearLine,
	totalVoxels, maskVoxels int) *Report {

	rep := &Report{
		EdgeCells:    len(points),
		HullVertices: len(hull),
		Slope:        line.Slope,
		Intercept:    line.Intercept,
		TotalVoxels:  totalVoxels,
		MaskVoxels:   maskVoxels,
		MaxIntensity: math.Inf(-1),
		samples:      make([]float64, 0, maxIntensitySamples),
	}
	clearance := math.Inf(1)
	for _, p := range points {
		if d := float64(p.Y) - line.YAt(p.X); d < clearance {
			clearance = d
		}
	}
	if len(points) > 0 {
		rep.Clearance = clearance
	}
	rep.rng.Seed(1)
	return rep
}

// addRemoved records one removed voxel's pre-zeroing intensity.
func (rep *Report) addRemoved(v float64) {
	rep.Removed++
	if v != 0 {
		rep.RemovedNonzero++
	}
	if v > rep.MaxIntensity {
		rep.MaxIntensity = v
	}
	if len(rep.samples) < maxIntensitySamples {
		rep.samples = append(rep.samples, v)
		return
	}
	// Reservoir sampling keeps every removed voxel equally likely to be in
	// the sample.
	if j := rep.rng.Uint32n(uint32(rep.Removed)); int(j) < maxIntensitySamples {
		rep.samples[j] = v
	}
}

// finish computes the derived statistics once all removed voxels are in.
func (rep *Report) finish() {
	if rep.TotalVoxels > 0 {
		rep.RemovedFraction = float64(rep.Removed) / float64(rep.TotalVoxels)
	}
	if rep.Removed == 0 {
		rep.MaxIntensity = 0
		return
	}
	rep.MeanIntensity = stat.Mean(rep.samples, nil)
	if len(rep.samples) > 1 {
		rep.StdDevIntensity = stat.StdDev(rep.samples, nil)
	}
}

// Log writes the report through the logger at info level.
func (rep *Report) Log(log *logging.Logger) {
	log.Infof("removed %d of %d voxels (%.2f%%), %d carrying signal",
		rep.Removed, rep.TotalVoxels, 100*rep.RemovedFraction, rep.RemovedNonzero)
	log.Infof("shear line slope %.4f intercept %.4f, from %d hull vertices over %d outline cells",
		rep.Slope, rep.Intercept, rep.HullVertices, rep.EdgeCells)
	log.Infof("brain mask %d voxels, %d below the shear line, minimum clearance %.1f voxels",
		rep.MaskVoxels, rep.MaskRemoved, rep.Clearance)
	if rep.MaskRemoved > 0 {
		log.Warningf("%d brain mask voxels fell below the shear line; consider a larger buffer",
			rep.MaskRemoved)
	}
	if rep.Removed > 0 {
		qualifier := ""
		if rep.Removed > maxIntensitySamples {
			qualifier = " (sampled)"
		}
		log.Infof("removed intensity mean %.2f stddev %.2f max %.2f%s",
			rep.MeanIntensity, rep.StdDevIntensity, rep.MaxIntensity, qualifier)
	}
}
