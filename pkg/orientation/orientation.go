// Package orientation maps NIfTI affines to anatomical axis codes and derives
// the axis flips that bring a volume into the canonical sagittal frame: the
// hemispheric axis first, then anterior-to-posterior, then inferior-to-superior.
package orientation

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/effigies/quickshear/internal/models"
)

// Hemisphere selects which hemisphere the first canonical axis points toward.
type Hemisphere byte

const (
	// Right orients the first axis left-to-right (code R).
	Right Hemisphere = 'R'
	// Left orients the first axis right-to-left (code L).
	Left Hemisphere = 'L'
)

// ParseHemisphere interprets a command-line hemisphere value, accepting "R" or
// "L" in either case.
func ParseHemisphere(s string) (Hemisphere, error) {
	switch strings.ToUpper(s) {
	case "R":
		return Right, nil
	case "L":
		return Left, nil
	}
	return 0, fmt.Errorf("invalid hemisphere %q: must be R or L", s)
}

func (h Hemisphere) String() string {
	return string(byte(h))
}

// ErrUnsupportedOrientation is returned when a volume's axes cannot be brought
// to the canonical frame by flips alone, i.e. some voxel axis runs along a
// different anatomical axis than the canonical one in its position. Such
// volumes would need an axis permutation, which the defacer does not perform.
var ErrUnsupportedOrientation = errors.New("volume axes cannot be reoriented by flips alone")

// codesByWorldAxis holds the positive and negative axis codes for each world
// axis: left-right, posterior-anterior, inferior-superior.
var codesByWorldAxis = [3][2]byte{
	{'R', 'L'},
	{'A', 'P'},
	{'S', 'I'},
}

// AxisCodes determines the anatomical direction of each voxel axis from the
// image affine. For every voxel axis the dominant world axis is the row of the
// affine's 3x3 rotation block with the largest magnitude in that column; the
// entry's sign picks the code, so a voxel axis running toward the subject's
// left yields L, toward anterior A, and so on.
//
// The affine must map distinct voxel axes to distinct world axes. A zero
// column or two columns dominated by the same row mean the affine does not
// describe a usable orientation, and an error is returned.
func AxisCodes(affine *mat.Dense) ([3]byte, error) {
	var codes [3]byte
	if r, c := affine.Dims(); r < 3 || c < 3 {
		return codes, fmt.Errorf("affine must be at least 3x3, got %dx%d", r, c)
	}

	claimed := [3]int{-1, -1, -1}
	for j := 0; j < 3; j++ {
		best := -1
		bestAbs := 0.0
		for i := 0; i < 3; i++ {
			v := affine.At(i, j)
			if v < 0 {
				v = -v
			}
			if v > bestAbs {
				best, bestAbs = i, v
			}
		}
		if best < 0 {
			return codes, fmt.Errorf("affine column %d is zero: no world axis for voxel axis %d", j, j)
		}
		if prev := claimed[best]; prev >= 0 {
			return codes, fmt.Errorf("affine maps voxel axes %d and %d to the same world axis", prev, j)
		}
		claimed[best] = j

		if affine.At(best, j) > 0 {
			codes[j] = codesByWorldAxis[best][0]
		} else {
			codes[j] = codesByWorldAxis[best][1]
		}
	}
	return codes, nil
}

// opposite returns the code for the reversed direction of the same world axis,
// or 0 for an unknown code.
func opposite(code byte) byte {
	for _, pair := range codesByWorldAxis {
		switch code {
		case pair[0]:
			return pair[1]
		case pair[1]:
			return pair[0]
		}
	}
	return 0
}

// Flips derives the per-axis flips that bring a volume with the given affine
// into the canonical frame (hemi, P, S). An axis already matching its target
// code is left alone; one matching the opposite code is flipped; anything else
// wraps ErrUnsupportedOrientation, since a flip cannot move an axis onto a
// different world axis.
func Flips(affine *mat.Dense, hemi Hemisphere) (models.FlipVector, error) {
	var flips models.FlipVector
	codes, err := AxisCodes(affine)
	if err != nil {
		return flips, err
	}

	target := [3]byte{byte(hemi), 'P', 'S'}
	for i := 0; i < 3; i++ {
		switch codes[i] {
		case target[i]:
		case opposite(target[i]):
			flips[i] = true
		default:
			return models.FlipVector{}, fmt.Errorf(
				"axis %d runs along %c, expected %c or %c: %w",
				i, codes[i], target[i], opposite(target[i]), ErrUnsupportedOrientation)
		}
	}
	return flips, nil
}

// Normalize returns a copy of the volume flipped into the canonical frame,
// together with the flip vector used. Applying the same flips again restores
// the original layout, which is how defaced data is mapped back before
// writing.
func Normalize(vol *models.Volume, affine *mat.Dense, hemi Hemisphere) (*models.Volume, models.FlipVector, error) {
	flips, err := Flips(affine, hemi)
	if err != nil {
		return nil, models.FlipVector{}, err
	}
	return vol.Flipped(flips), flips, nil
}
