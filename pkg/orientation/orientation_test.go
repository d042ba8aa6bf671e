package orientation

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/effigies/quickshear/internal/models"
)

func diagAffine(x, y, z float64) *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		x, 0, 0, 0,
		0, y, 0, 0,
		0, 0, z, 0,
		0, 0, 0, 1,
	})
}

func TestAxisCodesIdentity(t *testing.T) {
	codes, err := AxisCodes(diagAffine(1, 1, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if codes != [3]byte{'R', 'A', 'S'} {
		t.Errorf("expected codes RAS, got %c%c%c", codes[0], codes[1], codes[2])
	}
}

func TestAxisCodesFlippedAxes(t *testing.T) {
	tests := []struct {
		x, y, z  float64
		expected [3]byte
	}{
		{-1, 1, 1, [3]byte{'L', 'A', 'S'}},
		{1, -1, 1, [3]byte{'R', 'P', 'S'}},
		{1, 1, -1, [3]byte{'R', 'A', 'I'}},
		{-1, -1, -1, [3]byte{'L', 'P', 'I'}},
	}
	for _, tt := range tests {
		codes, err := AxisCodes(diagAffine(tt.x, tt.y, tt.z))
		if err != nil {
			t.Fatalf("diag(%v,%v,%v): unexpected error: %v", tt.x, tt.y, tt.z, err)
		}
		if codes != tt.expected {
			t.Errorf("diag(%v,%v,%v): expected %s, got %s",
				tt.x, tt.y, tt.z, string(tt.expected[:]), string(codes[:]))
		}
	}
}

func TestAxisCodesPermuted(t *testing.T) {
	// Voxel x runs along the world anterior axis, voxel y along left-right.
	affine := mat.NewDense(4, 4, []float64{
		0, 1, 0, 0,
		1, 0, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})

	codes, err := AxisCodes(affine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if codes != [3]byte{'A', 'R', 'S'} {
		t.Errorf("expected codes ARS, got %s", string(codes[:]))
	}
}

func TestAxisCodesObliqueDominance(t *testing.T) {
	// Rotated and anisotropically scaled, but each column still has a clear
	// dominant world axis.
	affine := mat.NewDense(4, 4, []float64{
		0.9, -0.2, 0.1, -90,
		0.3, -2.5, 0.2, 120,
		0.1, 0.3, 1.4, -70,
		0, 0, 0, 1,
	})

	codes, err := AxisCodes(affine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if codes != [3]byte{'R', 'P', 'S'} {
		t.Errorf("expected codes RPS, got %s", string(codes[:]))
	}
}

func TestAxisCodesDegenerate(t *testing.T) {
	if _, err := AxisCodes(diagAffine(1, 0, 1)); err == nil {
		t.Error("expected an error for an affine with a zero column")
	}

	collision := mat.NewDense(4, 4, []float64{
		1, 0.9, 0, 0,
		0, 0.1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	if _, err := AxisCodes(collision); err == nil {
		t.Error("expected an error when two voxel axes share a world axis")
	}
}

func TestFlipsToCanonical(t *testing.T) {
	tests := []struct {
		name     string
		affine   *mat.Dense
		hemi     Hemisphere
		expected models.FlipVector
	}{
		{"RAS to RPS", diagAffine(1, 1, 1), Right, models.FlipVector{false, true, false}},
		{"RAS to LPS", diagAffine(1, 1, 1), Left, models.FlipVector{true, true, false}},
		{"already RPS", diagAffine(1, -1, 1), Right, models.FlipVector{}},
		{"LAI to RPS", diagAffine(-1, 1, -1), Right, models.FlipVector{true, true, true}},
		{"LPS to LPS", diagAffine(-1, -1, 1), Left, models.FlipVector{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flips, err := Flips(tt.affine, tt.hemi)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if flips != tt.expected {
				t.Errorf("expected flips %v, got %v", tt.expected, flips)
			}
		})
	}
}

func TestFlipsUnsupported(t *testing.T) {
	permuted := mat.NewDense(4, 4, []float64{
		0, 1, 0, 0,
		1, 0, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})

	_, err := Flips(permuted, Right)
	if !errors.Is(err, ErrUnsupportedOrientation) {
		t.Errorf("expected ErrUnsupportedOrientation, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	vol, err := models.NewVolume(nil, 2, 2, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	val := float32(0)
	for z := 0; z < 2; z++ {
		for y := 0; y < 2; y++ {
			for x := 0; x < 2; x++ {
				vol.Set(x, y, z, val)
				val++
			}
		}
	}

	// An identity affine is RAS, so only the anterior-posterior axis flips.
	canonical, flips, err := Normalize(vol, diagAffine(1, 1, 1), Right)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expected := (models.FlipVector{false, true, false}); flips != expected {
		t.Fatalf("expected flips %v, got %v", expected, flips)
	}
	for z := 0; z < 2; z++ {
		for y := 0; y < 2; y++ {
			for x := 0; x < 2; x++ {
				if got, want := canonical.At(x, y, z), vol.At(x, 1-y, z); got != want {
					t.Errorf("voxel (%d,%d,%d): expected %v, got %v", x, y, z, want, got)
				}
			}
		}
	}
	if vol.At(0, 0, 0) != 0 {
		t.Error("expected the input volume to be left unchanged")
	}
}

func TestParseHemisphere(t *testing.T) {
	for _, s := range []string{"R", "r"} {
		h, err := ParseHemisphere(s)
		if err != nil || h != Right {
			t.Errorf("ParseHemisphere(%q): expected Right, got %v, %v", s, h, err)
		}
	}
	for _, s := range []string{"L", "l"} {
		h, err := ParseHemisphere(s)
		if err != nil || h != Left {
			t.Errorf("ParseHemisphere(%q): expected Left, got %v, %v", s, h, err)
		}
	}
	for _, s := range []string{"", "B", "RL", "right"} {
		if _, err := ParseHemisphere(s); err == nil {
			t.Errorf("ParseHemisphere(%q): expected an error", s)
		}
	}
}
