package nifti

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// Save writes the image to disk, gzip-compressing when the path ends in .gz.
func (img *Image) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	var w io.Writer = f
	var zw *gzip.Writer
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		zw = gzip.NewWriter(f)
		w = zw
	}

	err = img.Encode(w)
	if zw != nil {
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Encode writes the image back out of its retained bytes: header, extension,
// and voxel block exactly as read, including any voxels zeroed since.
func (img *Image) Encode(w io.Writer) error {
	if len(img.rawHeader) != HeaderSize {
		return fmt.Errorf("image has no encoded form to write")
	}
	for _, block := range [][]byte{img.rawHeader, img.rawExt, img.rawVoxels} {
		if _, err := w.Write(block); err != nil {
			return err
		}
	}
	return nil
}
