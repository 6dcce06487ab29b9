//go:build !linux || !cgo

package thumb

import (
	"errors"
	"image"
	"io"
)

func decodeHEIC(io.Reader) (image.Image, error) {
	return nil, errors.New("HEIC decoding is only available on Linux")
}

func heicSupported() bool { return false }
