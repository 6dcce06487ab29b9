//go:build linux && cgo

package thumb

import (
	"image"
	"io"

	"github.com/jdeng/goheif"
)

// goheif links libde265 through cgo and is only built on Linux.
func decodeHEIC(r io.Reader) (image.Image, error) {
	return goheif.Decode(r)
}

func heicSupported() bool { return true }
