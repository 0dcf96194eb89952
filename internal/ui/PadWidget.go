package ui

import (
	"image"
	"image/color"
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/driver/mobile"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"ScribblePad/internal/pad"
	"ScribblePad/internal/state"
	"ScribblePad/internal/surface"
)

// Fyne reports a single touch contact without an identifier of its own.
var localTouch = state.ScopedIdentifier(0, 0)

// PadWidget shows a pad's raster and feeds it window input. Mouse input
// goes through the pointer channel, mobile touch through the touch channel.
type PadWidget struct {
	widget.BaseWidget

	pad    *pad.Pad
	logger *zap.Logger

	// channel of the contact the current drag belongs to, 0 when none
	dragChannel state.Channel
	initialized bool

	raster         *canvas.Raster
	refreshPending atomic.Bool

	// OnSurfaceError is called when the surface cannot get a rendering
	// context, either at initialisation or on a later resize.
	OnSurfaceError func(error)
}

var _ fyne.Widget = (*PadWidget)(nil)
var _ fyne.Draggable = (*PadWidget)(nil)
var _ desktop.Mouseable = (*PadWidget)(nil)
var _ mobile.Touchable = (*PadWidget)(nil)
var _ surface.ViewportSource = (*PadWidget)(nil)

func NewPadWidget(logger *zap.Logger) *PadWidget {
	w := &PadWidget{logger: logger.Named("ui")}
	w.raster = canvas.NewRaster(w.generate)
	w.ExtendBaseWidget(w)
	return w
}

// SetPad attaches the pad this widget draws and measures for.
func (w *PadWidget) SetPad(p *pad.Pad) {
	w.pad = p
	p.OnChange(w.scheduleRefresh)
}

func (w *PadWidget) Pad() *pad.Pad { return w.pad }

// Viewport reports the widget size in logical units and the canvas scale
// as the device pixel ratio.
func (w *PadWidget) Viewport() surface.Viewport {
	size := w.Size()
	return surface.Viewport{
		Width:      float64(size.Width),
		Height:     float64(size.Height),
		PixelRatio: float64(w.scale()),
	}
}

func (w *PadWidget) scale() float32 {
	app := fyne.CurrentApp()
	if app == nil {
		return 1
	}
	c := app.Driver().CanvasForObject(w)
	if c == nil || c.Scale() <= 0 {
		return 1
	}
	return c.Scale()
}

// Resize re-runs the surface transform. The first usable size initialises it.
// A failed resize keeps the previous surface and is reported through
// OnSurfaceError.
func (w *PadWidget) Resize(size fyne.Size) {
	w.BaseWidget.Resize(size)
	if w.pad == nil || size.Width <= 0 || size.Height <= 0 {
		return
	}
	if !w.initialized {
		if err := w.pad.Initialize(); err != nil {
			w.logger.Error("surface initialisation failed", zap.Error(err))
			w.surfaceError(err)
			return
		}
		w.initialized = true
		return
	}
	if err := w.pad.Resize(); err != nil {
		w.logger.Warn("surface kept at previous size", zap.Error(err))
		w.surfaceError(err)
	}
}

func (w *PadWidget) surfaceError(err error) {
	if w.OnSurfaceError != nil {
		w.OnSurfaceError(err)
	}
}

func (w *PadWidget) generate(_, _ int) image.Image {
	if w.pad == nil {
		return image.NewRGBA(image.Rectangle{})
	}
	return w.pad.Snapshot()
}

// scheduleRefresh coalesces change notifications from any goroutine into
// one raster refresh on the UI goroutine.
func (w *PadWidget) scheduleRefresh() {
	if !w.refreshPending.CompareAndSwap(false, true) {
		return
	}
	fyne.Do(func() {
		w.refreshPending.Store(false)
		w.raster.Refresh()
	})
}

func (w *PadWidget) handle(phase state.Phase, ch state.Channel, pos fyne.Position) {
	if w.pad == nil {
		return
	}
	id := localTouch
	if ch == state.ChannelPointer {
		id = state.PointerIdentifier
	}
	w.pad.Handle(state.Event{
		Phase:    phase,
		Channel:  ch,
		Contacts: []state.TouchRecord{state.NewTouchRecord(id, float64(pos.X), float64(pos.Y))},
	})
}

func (w *PadWidget) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	w.dragChannel = state.ChannelPointer
	w.handle(state.PhaseStart, state.ChannelPointer, e.Position)
}

func (w *PadWidget) MouseUp(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	w.handle(state.PhaseEnd, state.ChannelPointer, e.Position)
	if w.dragChannel == state.ChannelPointer {
		w.dragChannel = 0
	}
}

func (w *PadWidget) TouchDown(e *mobile.TouchEvent) {
	w.dragChannel = state.ChannelTouch
	w.handle(state.PhaseStart, state.ChannelTouch, e.Position)
}

func (w *PadWidget) TouchUp(e *mobile.TouchEvent) {
	w.handle(state.PhaseEnd, state.ChannelTouch, e.Position)
	if w.dragChannel == state.ChannelTouch {
		w.dragChannel = 0
	}
}

func (w *PadWidget) TouchCancel(e *mobile.TouchEvent) {
	w.handle(state.PhaseCancel, state.ChannelTouch, e.Position)
	if w.dragChannel == state.ChannelTouch {
		w.dragChannel = 0
	}
}

func (w *PadWidget) Dragged(e *fyne.DragEvent) {
	if w.dragChannel == 0 {
		return
	}
	w.handle(state.PhaseMove, w.dragChannel, e.Position)
}

// DragEnd finishes a contact whose release happened outside the widget,
// at its last known position.
func (w *PadWidget) DragEnd() {
	ch := w.dragChannel
	if ch == 0 || w.pad == nil {
		return
	}
	w.dragChannel = 0
	id := localTouch
	if ch == state.ChannelPointer {
		id = state.PointerIdentifier
	}
	if last, ok := w.pad.Lookup(id); ok {
		w.handle(state.PhaseEnd, ch, fyne.NewPos(float32(last.X), float32(last.Y)))
	}
}

func (w *PadWidget) MouseIn(*desktop.MouseEvent)    {}
func (w *PadWidget) MouseOut()                      {}
func (w *PadWidget) MouseMoved(*desktop.MouseEvent) {}

func (w *PadWidget) CreateRenderer() fyne.WidgetRenderer {
	return &padWidgetRenderer{
		widget:     w,
		background: canvas.NewRectangle(color.White),
	}
}

type padWidgetRenderer struct {
	widget     *PadWidget
	background *canvas.Rectangle
}

func (r *padWidgetRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.background, r.widget.raster}
}

func (r *padWidgetRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)
	r.widget.raster.Resize(size)
}

func (r *padWidgetRenderer) MinSize() fyne.Size { return fyne.NewSize(300, 300) }

func (r *padWidgetRenderer) Refresh() {
	r.background.Refresh()
	r.widget.raster.Refresh()
}

func (r *padWidgetRenderer) Destroy() {}
