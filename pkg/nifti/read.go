package nifti

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/effigies/quickshear/internal/models"
)

var (
	// ErrNotNIfTI is returned when the input does not carry a valid NIfTI-1
	// signature in either byte order.
	ErrNotNIfTI = errors.New("not a NIfTI-1 image")

	// ErrDetachedPair is returned for images with the "ni1" magic, which store
	// header and voxels in separate .hdr/.img files.
	ErrDetachedPair = errors.New("detached .hdr/.img pairs are not supported")
)

// Load reads a NIfTI-1 image from disk, transparently decompressing files
// with a .gz extension.
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream of %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	img, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return img, nil
}

// Decode parses a single-file NIfTI-1 image from an uncompressed stream.
func Decode(r io.Reader) (*Image, error) {
	hdr := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	order, err := detectByteOrder(hdr)
	if err != nil {
		return nil, err
	}

	magic := hdr[offMagic : offMagic+4]
	switch {
	case bytes.Equal(magic, []byte("n+1\x00")):
	case bytes.Equal(magic, []byte("ni1\x00")):
		return nil, ErrDetachedPair
	default:
		return nil, fmt.Errorf("%w: magic %q", ErrNotNIfTI, magic)
	}

	nx, ny, nz, err := volumeDims(hdr, order)
	if err != nil {
		return nil, err
	}

	datatype := int(headerInt16(hdr, offDatatype, order))
	voxelSize, err := bytesPerVoxel(datatype)
	if err != nil {
		return nil, err
	}
	if bitpix := int(headerInt16(hdr, offBitpix, order)); bitpix != 8*voxelSize {
		return nil, fmt.Errorf("bitpix %d does not match datatype %d", bitpix, datatype)
	}

	voxOffset := int64(headerFloat32(hdr, offVoxOffset, order))
	if voxOffset < MinVoxOffset {
		return nil, fmt.Errorf("vox_offset %d is inside the header", voxOffset)
	}
	ext := make([]byte, voxOffset-HeaderSize)
	if _, err := io.ReadFull(r, ext); err != nil {
		return nil, fmt.Errorf("reading %d extension bytes: %w", len(ext), err)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading voxel data: %w", err)
	}
	need := nx * ny * nz * voxelSize
	if len(raw) < need {
		return nil, fmt.Errorf("voxel data truncated: expected %d bytes, got %d", need, len(raw))
	}

	slope := float64(headerFloat32(hdr, offSclSlope, order))
	inter := float64(headerFloat32(hdr, offSclInter, order))
	if slope == 0 || math.IsNaN(slope) {
		slope, inter = 1, 0
	}
	if math.IsNaN(inter) {
		inter = 0
	}

	data, err := decodeVoxels(raw[:need], datatype, order, slope, inter)
	if err != nil {
		return nil, err
	}
	vol, err := models.NewVolume(data, nx, ny, nz)
	if err != nil {
		return nil, err
	}

	return &Image{
		Nx:        nx,
		Ny:        ny,
		Nz:        nz,
		Datatype:  datatype,
		Bitpix:    8 * voxelSize,
		SclSlope:  slope,
		SclInter:  inter,
		ByteOrder: order,
		Affine:    affineFromHeader(hdr, order),
		Volume:    vol,
		rawHeader: hdr,
		rawExt:    ext,
		rawVoxels: raw,
		voxelSize: voxelSize,
	}, nil
}

// detectByteOrder infers the file's byte order from the sizeof_hdr field,
// which reads as 348 only in the order the file was written with.
func detectByteOrder(hdr []byte) (binary.ByteOrder, error) {
	if int32(binary.LittleEndian.Uint32(hdr[offSizeofHdr:])) == HeaderSize {
		return binary.LittleEndian, nil
	}
	if int32(binary.BigEndian.Uint32(hdr[offSizeofHdr:])) == HeaderSize {
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("%w: sizeof_hdr is not %d in either byte order", ErrNotNIfTI, HeaderSize)
}

// volumeDims extracts and validates the grid dimensions. Higher-dimensional
// images are accepted only when every axis beyond the third has extent 1.
func volumeDims(hdr []byte, order binary.ByteOrder) (nx, ny, nz int, err error) {
	ndim := int(headerInt16(hdr, offDim, order))
	if ndim < 1 || ndim > 7 {
		return 0, 0, 0, fmt.Errorf("header reports %d dimensions", ndim)
	}
	if ndim < 3 {
		return 0, 0, 0, fmt.Errorf("expected a 3-D volume, image has %d dimension(s)", ndim)
	}
	var dims [8]int
	for i := 1; i <= ndim; i++ {
		dims[i] = int(headerInt16(hdr, offDim+2*i, order))
	}
	for i := 1; i <= 3; i++ {
		if dims[i] < 1 {
			return 0, 0, 0, fmt.Errorf("axis %d has invalid extent %d", i, dims[i])
		}
	}
	for i := 4; i <= ndim; i++ {
		if dims[i] != 1 {
			return 0, 0, 0, fmt.Errorf("axis %d has extent %d: only 3-D volumes are supported", i, dims[i])
		}
	}
	return dims[1], dims[2], dims[3], nil
}

// decodeVoxels converts the raw voxel block to scaled float32 values.
func decodeVoxels(raw []byte, datatype int, order binary.ByteOrder, slope, inter float64) ([]float32, error) {
	scale := func(v float64) float32 {
		return float32(v*slope + inter)
	}

	size, err := bytesPerVoxel(datatype)
	if err != nil {
		return nil, err
	}
	data := make([]float32, len(raw)/size)
	switch datatype {
	case DTUint8:
		for i := range data {
			data[i] = scale(float64(raw[i]))
		}
	case DTInt8:
		for i := range data {
			data[i] = scale(float64(int8(raw[i])))
		}
	case DTInt16:
		for i := range data {
			data[i] = scale(float64(int16(order.Uint16(raw[2*i:]))))
		}
	case DTUint16:
		for i := range data {
			data[i] = scale(float64(order.Uint16(raw[2*i:])))
		}
	case DTInt32:
		for i := range data {
			data[i] = scale(float64(int32(order.Uint32(raw[4*i:]))))
		}
	case DTUint32:
		for i := range data {
			data[i] = scale(float64(order.Uint32(raw[4*i:])))
		}
	case DTFloat32:
		for i := range data {
			data[i] = scale(float64(math.Float32frombits(order.Uint32(raw[4*i:]))))
		}
	case DTFloat64:
		for i := range data {
			data[i] = scale(math.Float64frombits(order.Uint64(raw[8*i:])))
		}
	default:
		return nil, fmt.Errorf("unsupported datatype code %d", datatype)
	}
	return data, nil
}

// affineFromHeader picks the voxel-to-world mapping the way NIfTI consumers
// do: the sform rows when sform_code is set, else the qform quaternion, else a
// diagonal affine built from the pixel sizes.
func affineFromHeader(hdr []byte, order binary.ByteOrder) *mat.Dense {
	if headerInt16(hdr, offSformCode, order) > 0 {
		vals := make([]float64, 0, 16)
		for row := 0; row < 3; row++ {
			for col := 0; col < 4; col++ {
				vals = append(vals, float64(headerFloat32(hdr, offSrowX+16*row+4*col, order)))
			}
		}
		vals = append(vals, 0, 0, 0, 1)
		return mat.NewDense(4, 4, vals)
	}
	if headerInt16(hdr, offQformCode, order) > 0 {
		return qformAffine(hdr, order)
	}

	// Neither form is set; orientation falls back to scanner axes with the
	// header's pixel sizes.
	return mat.NewDense(4, 4, []float64{
		pixdim(hdr, 1, order), 0, 0, 0,
		0, pixdim(hdr, 2, order), 0, 0,
		0, 0, pixdim(hdr, 3, order), 0,
		0, 0, 0, 1,
	})
}

// qformAffine reconstructs the rotation from the stored unit quaternion. The
// first quaternion component is recovered from the unit constraint; pixdim[0]
// carries the handedness of the voxel grid as the sign of qfac.
func qformAffine(hdr []byte, order binary.ByteOrder) *mat.Dense {
	b := float64(headerFloat32(hdr, offQuaternB, order))
	c := float64(headerFloat32(hdr, offQuaternB+4, order))
	d := float64(headerFloat32(hdr, offQuaternB+8, order))
	a2 := 1 - (b*b + c*c + d*d)
	if a2 < 0 {
		a2 = 0
	}
	a := math.Sqrt(a2)

	qfac := 1.0
	if headerFloat32(hdr, offPixdim, order) < 0 {
		qfac = -1
	}
	px, py, pz := pixdim(hdr, 1, order), pixdim(hdr, 2, order), pixdim(hdr, 3, order)
	ox := float64(headerFloat32(hdr, offQoffsetX, order))
	oy := float64(headerFloat32(hdr, offQoffsetX+4, order))
	oz := float64(headerFloat32(hdr, offQoffsetX+8, order))

	return mat.NewDense(4, 4, []float64{
		(a*a + b*b - c*c - d*d) * px, (2*b*c - 2*a*d) * py, (2*b*d + 2*a*c) * pz * qfac, ox,
		(2*b*c + 2*a*d) * px, (a*a + c*c - b*b - d*d) * py, (2*c*d - 2*a*b) * pz * qfac, oy,
		(2*b*d - 2*a*c) * px, (2*c*d + 2*a*b) * py, (a*a + d*d - b*b - c*c) * pz * qfac, oz,
		0, 0, 0, 1,
	})
}

func pixdim(hdr []byte, i int, order binary.ByteOrder) float64 {
	return float64(headerFloat32(hdr, offPixdim+4*i, order))
}

func headerInt16(hdr []byte, off int, order binary.ByteOrder) int16 {
	return int16(order.Uint16(hdr[off:]))
}

func headerFloat32(hdr []byte, off int, order binary.ByteOrder) float32 {
	return math.Float32frombits(order.Uint32(hdr[off:]))
}
