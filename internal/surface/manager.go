// Package surface owns the raster backing store, its device-pixel-ratio
// sizing and the rendering context transform.
package surface

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"go.uber.org/zap"

	"ScribblePad/internal/state"
)

// ErrNoContext means no rendering context could be provided for the
// requested backing store. It is fatal at initialisation.
var ErrNoContext = errors.New("surface: rendering context unavailable")

// DefaultMaxDimension mirrors the largest canvas side common platforms allow.
const DefaultMaxDimension = 16384

// Viewport is the host geometry in logical pixels.
type Viewport struct {
	Width, Height float64
	PixelRatio    float64
}

func (v Viewport) valid() bool {
	return v.Width > 0 && v.Height > 0 && v.PixelRatio > 0
}

type ViewportSource interface {
	Viewport() Viewport
}

// ViewportFunc adapts a function to ViewportSource.
type ViewportFunc func() Viewport

func (f ViewportFunc) Viewport() Viewport { return f() }

// Transform is the geometry applied at the last successful resize.
type Transform struct {
	Width, Height float64
	PixelRatio    float64
}

// BackingSize is logical size times pixel ratio, truncated like a canvas
// element truncates its width and height attributes.
func (t Transform) BackingSize() (int, int) {
	return int(t.Width * t.PixelRatio), int(t.Height * t.PixelRatio)
}

// ContextFactory allocates a rendering context for a backing store.
type ContextFactory func(w, h int) (*Context, error)

// Manager keeps the backing store and transform in line with the viewport.
// Drawing calls made through it always reach the current context.
type Manager struct {
	src          ViewportSource
	factory      ContextFactory
	maxDimension int
	logger       *zap.Logger

	ctx       *Context
	transform Transform
}

type Option func(*Manager)

func WithMaxDimension(n int) Option { return func(m *Manager) { m.maxDimension = n } }

func WithContextFactory(f ContextFactory) Option { return func(m *Manager) { m.factory = f } }

func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.logger = l } }

func NewManager(src ViewportSource, opts ...Option) *Manager {
	m := &Manager{
		src:          src,
		maxDimension: DefaultMaxDimension,
		logger:       zap.NewNop(),
	}
	m.factory = m.allocate
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) allocate(w, h int) (*Context, error) {
	if w > m.maxDimension || h > m.maxDimension {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d", ErrNoContext, w, h, m.maxDimension)
	}
	return newContext(w, h), nil
}

// Initialize sizes the backing store from the viewport for the first time.
// Any failure to obtain a context is fatal to the caller.
func (m *Manager) Initialize() error {
	if err := m.Resize(); err != nil {
		return err
	}
	if m.ctx == nil {
		m.logger.Warn("surface not initialised: viewport has no area")
	}
	return nil
}

// Resize re-reads the viewport and reapplies the transform. A viewport
// with non-positive dimensions is ignored. Reallocating the backing
// store discards everything drawn so far; an unchanged geometry keeps it.
func (m *Manager) Resize() error {
	vp := m.src.Viewport()
	if !vp.valid() {
		m.logger.Debug("ignoring resize to empty viewport",
			zap.Float64("width", vp.Width), zap.Float64("height", vp.Height),
			zap.Float64("pixelRatio", vp.PixelRatio))
		return nil
	}

	next := Transform{Width: vp.Width, Height: vp.Height, PixelRatio: vp.PixelRatio}
	if m.ctx != nil && next == m.transform {
		m.ctx.SetTransform(next.PixelRatio)
		return nil
	}

	w, h := next.BackingSize()
	if w <= 0 || h <= 0 {
		return nil
	}
	ctx, err := m.factory(w, h)
	if err != nil {
		return fmt.Errorf("resize to %dx%d: %w", w, h, err)
	}
	if ctx == nil {
		return fmt.Errorf("resize to %dx%d: %w", w, h, ErrNoContext)
	}
	ctx.SetTransform(next.PixelRatio)

	m.ctx = ctx
	m.transform = next
	m.logger.Debug("surface resized",
		zap.Float64("width", next.Width), zap.Float64("height", next.Height),
		zap.Float64("pixelRatio", next.PixelRatio), zap.Int("backingWidth", w), zap.Int("backingHeight", h))
	return nil
}

func (m *Manager) Initialized() bool { return m.ctx != nil }

func (m *Manager) Transform() Transform { return m.transform }

// Context returns the current rendering context, nil before initialisation.
func (m *Manager) Context() *Context { return m.ctx }

// Image returns a copy of the backing store.
func (m *Manager) Image() *image.RGBA {
	if m.ctx == nil {
		return image.NewRGBA(image.Rectangle{})
	}
	src := m.ctx.Image()
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out
}

func (m *Manager) Clear() {
	if m.ctx != nil {
		m.ctx.Clear()
	}
}

func (m *Manager) Dot(center state.Point, radius float64, c color.Color) {
	if m.ctx == nil || !finite(center.X, center.Y, radius) {
		return
	}
	m.ctx.Dot(center, radius, c)
}

func (m *Manager) Line(from, to state.Point, width float64, c color.Color) {
	if m.ctx == nil || !finite(from.X, from.Y, to.X, to.Y, width) {
		return
	}
	m.ctx.Line(from, to, width, c)
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

var _ state.Renderer = (*Manager)(nil)
