package export

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/jung-kurt/gofpdf"
)

const imageName = "scribble"

// PDF writes img onto a single page sized to the logical canvas, in
// points, so the page keeps the on-screen proportions whatever the
// pixel ratio of the backing store.
func PDF(w io.Writer, img image.Image, logicalW, logicalH float64) error {
	if logicalW <= 0 || logicalH <= 0 {
		b := img.Bounds()
		logicalW, logicalH = float64(b.Dx()), float64(b.Dy())
	}
	if logicalW <= 0 || logicalH <= 0 {
		return ErrEmpty
	}

	var buf bytes.Buffer
	if err := PNG(&buf, img); err != nil {
		return err
	}

	// Portrait keeps Wd and Ht as given; landscape would swap them.
	p := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: logicalW, Ht: logicalH},
	})
	p.SetMargins(0, 0, 0)
	p.SetAutoPageBreak(false, 0)
	p.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	p.RegisterImageOptionsReader(imageName, opts, &buf)
	p.ImageOptions(imageName, 0, 0, logicalW, logicalH, false, opts, 0, "")
	if err := p.Error(); err != nil {
		return fmt.Errorf("building pdf: %w", err)
	}
	return p.Output(w)
}
