// Package nifti reads and writes single-file NIfTI-1 images (.nii, .nii.gz).
//
// The package parses only what defacing needs: grid dimensions, datatype,
// scaling, and the orientation affine. The full header, any extensions, and
// the encoded voxel block are retained byte for byte, so an image written back
// out is identical to its input everywhere except the voxels explicitly
// zeroed.
package nifti

import (
	"encoding/binary"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/effigies/quickshear/internal/models"
)

// HeaderSize is the fixed size of a NIfTI-1 header in bytes.
const HeaderSize = 348

// MinVoxOffset is the smallest legal voxel data offset in a single-file
// image: the header plus the four-byte extension flag.
const MinVoxOffset = HeaderSize + 4

// NIfTI-1 datatype codes supported by the reader.
const (
	DTUint8   = 2
	DTInt16   = 4
	DTInt32   = 8
	DTFloat32 = 16
	DTFloat64 = 64
	DTInt8    = 256
	DTUint16  = 512
	DTUint32  = 768
)

// Byte offsets of the header fields the reader interprets.
const (
	offSizeofHdr = 0
	offDim       = 40
	offDatatype  = 70
	offBitpix    = 72
	offPixdim    = 76
	offVoxOffset = 108
	offSclSlope  = 112
	offSclInter  = 116
	offQformCode = 252
	offSformCode = 254
	offQuaternB  = 256
	offQoffsetX  = 268
	offSrowX     = 280
	offMagic     = 344
)

// Image is a decoded single-file NIfTI-1 volume.
//
// Volume holds the voxel values after applying the header's scl_slope and
// scl_inter scaling, laid out first-axis-fastest as in the file. The raw
// header, extension, and voxel bytes are kept alongside so Encode reproduces
// the input exactly; ZeroVoxel updates both representations.
type Image struct {
	// Nx, Ny, Nz are the grid dimensions of the first three axes.
	Nx, Ny, Nz int
	// Datatype is the NIfTI datatype code of the encoded voxels.
	Datatype int
	// Bitpix is the encoded size of one voxel in bits.
	Bitpix int
	// SclSlope and SclInter are the effective scaling applied to raw values;
	// a zero or NaN slope in the header reads as the identity scaling.
	SclSlope, SclInter float64
	// ByteOrder is the byte order the file was encoded with.
	ByteOrder binary.ByteOrder
	// Affine maps voxel indices to world coordinates, chosen from the sform
	// when set, else the qform, else the pixel size fallback.
	Affine *mat.Dense
	// Volume is the scaled voxel data.
	Volume *models.Volume

	rawHeader []byte
	rawExt    []byte
	rawVoxels []byte
	voxelSize int
}

// bytesPerVoxel maps a supported datatype to its encoded size.
func bytesPerVoxel(datatype int) (int, error) {
	switch datatype {
	case DTUint8, DTInt8:
		return 1, nil
	case DTInt16, DTUint16:
		return 2, nil
	case DTInt32, DTUint32, DTFloat32:
		return 4, nil
	case DTFloat64:
		return 8, nil
	}
	return 0, fmt.Errorf("unsupported datatype code %d", datatype)
}

// ZeroVoxel clears the voxel at (x, y, z) in both the scaled data and the raw
// encoding. The raw voxel is set to the stored value zero regardless of
// scaling, so removed voxels match the background of a freshly zeroed image.
func (img *Image) ZeroVoxel(x, y, z int) {
	idx := img.Volume.Index(x, y, z)
	img.Volume.Data[idx] = 0

	base := idx * img.voxelSize
	for i := 0; i < img.voxelSize; i++ {
		img.rawVoxels[base+i] = 0
	}
}

// ShapeString formats the grid dimensions for error messages.
func (img *Image) ShapeString() string {
	return fmt.Sprintf("%dx%dx%d", img.Nx, img.Ny, img.Nz)
}

// SameShape reports whether two images have identical grid dimensions.
func (img *Image) SameShape(other *Image) bool {
	return img.Nx == other.Nx && img.Ny == other.Ny && img.Nz == other.Nz
}
