package surface

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/fixed"

	"ScribblePad/internal/state"
)

// Context is a 2D rendering context over a raster backing store.
// Callers draw in logical coordinates; the scale transform maps them to
// backing-store pixels.
type Context struct {
	img     *image.RGBA
	scale   float64
	scanner *rasterx.ScannerGV
	filler  *rasterx.Filler
	stroker *rasterx.Stroker
}

func newContext(w, h int) *Context {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	return &Context{
		img:     img,
		scale:   1,
		scanner: scanner,
		filler:  rasterx.NewFiller(w, h, scanner),
		stroker: rasterx.NewStroker(w, h, scanner),
	}
}

// SetTransform sets the uniform scale. It replaces the current value, so
// applying the same transform twice never compounds it.
func (c *Context) SetTransform(scale float64) { c.scale = scale }

func (c *Context) Scale() float64 { return c.scale }

func (c *Context) Bounds() image.Rectangle { return c.img.Bounds() }

func (c *Context) Image() *image.RGBA { return c.img }

func (c *Context) Dot(center state.Point, radius float64, col color.Color) {
	if radius <= 0 {
		return
	}
	c.filler.Clear()
	c.filler.SetColor(col)
	rasterx.AddCircle(center.X*c.scale, center.Y*c.scale, radius*c.scale, c.filler)
	c.filler.Draw()
	c.filler.Clear()
}

func (c *Context) Line(from, to state.Point, width float64, col color.Color) {
	if width <= 0 {
		return
	}
	w := fixed.Int26_6(width * c.scale * 64)
	c.stroker.Clear()
	c.stroker.SetStroke(w, 0, rasterx.RoundCap, rasterx.RoundCap, rasterx.RoundGap, rasterx.Round)
	c.stroker.SetColor(col)
	c.stroker.Start(rasterx.ToFixedP(from.X*c.scale, from.Y*c.scale))
	c.stroker.Line(rasterx.ToFixedP(to.X*c.scale, to.Y*c.scale))
	c.stroker.Stop(false)
	c.stroker.Draw()
	c.stroker.Clear()
}

// Clear wipes the backing store to transparent.
func (c *Context) Clear() {
	draw.Draw(c.img, c.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}
