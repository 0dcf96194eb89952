// Package export writes the pad's raster out in standard image formats.
package export

import (
	"errors"
	"image"
	"image/png"
	"io"
)

var ErrEmpty = errors.New("export: nothing to export")

func PNG(w io.Writer, img image.Image) error {
	if img == nil || img.Bounds().Empty() {
		return ErrEmpty
	}
	return png.Encode(w, img)
}
