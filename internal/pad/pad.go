// Package pad ties one drawing surface to its stroke tracker.
package pad

import (
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ScribblePad/internal/config"
	"ScribblePad/internal/export"
	"ScribblePad/internal/state"
	"ScribblePad/internal/surface"
)

// Pad is one drawing surface instance. Input arrives from the UI
// goroutine and from remote connections; the mutex makes every batch
// apply completely before the next one is looked at.
type Pad struct {
	id     string
	logger *zap.Logger

	mu       sync.Mutex
	surface  *surface.Manager
	tracker  *state.Tracker
	onChange func()
}

func New(cfg config.Config, src surface.ViewportSource, logger *zap.Logger) (*Pad, error) {
	style, err := cfg.Stroke.Style()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	id := uuid.NewString()
	logger = logger.With(zap.String("pad", id))

	sm := surface.NewManager(src,
		surface.WithMaxDimension(cfg.Surface.MaxDimension),
		surface.WithLogger(logger.Named("surface")))
	tr := state.NewTracker(sm,
		state.WithStyle(style),
		state.WithChannels(cfg.Input.Channels()),
		state.WithClosingDot(cfg.Stroke.ClosingDot),
		state.WithDedupWindow(cfg.Input.DedupWindow.Duration),
		state.WithLogger(logger.Named("tracker")))

	return &Pad{id: id, logger: logger, surface: sm, tracker: tr}, nil
}

func (p *Pad) ID() string { return p.id }

// OnChange registers a callback run after every accepted event or clear,
// outside the lock.
func (p *Pad) OnChange(fn func()) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

func (p *Pad) Initialize() error {
	p.mu.Lock()
	err := p.surface.Initialize()
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("initialising pad %s: %w", p.id, err)
	}
	p.changed()
	return nil
}

// Resize reapplies the viewport. A changed geometry wipes the drawing;
// contacts that are still down keep going.
func (p *Pad) Resize() error {
	p.mu.Lock()
	err := p.surface.Resize()
	p.mu.Unlock()
	if err != nil {
		p.logger.Error("resize failed", zap.Error(err))
		return err
	}
	p.changed()
	return nil
}

func (p *Pad) Handle(ev state.Event) bool {
	p.mu.Lock()
	ok := p.tracker.Handle(ev)
	p.mu.Unlock()
	if ok {
		p.changed()
	}
	return ok
}

func (p *Pad) Clear() {
	p.mu.Lock()
	p.surface.Clear()
	p.mu.Unlock()
	p.changed()
}

func (p *Pad) SetStyle(s state.Style) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracker.SetStyle(s)
}

func (p *Pad) Style() state.Style {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracker.Style()
}

func (p *Pad) Active() []state.TouchRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracker.Active()
}

func (p *Pad) Lookup(id int64) (state.TouchRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracker.Lookup(id)
}

func (p *Pad) Transform() surface.Transform {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.surface.Transform()
}

// Snapshot copies the backing store.
func (p *Pad) Snapshot() *image.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.surface.Image()
}

func (p *Pad) ExportPNG(w io.Writer) error {
	return export.PNG(w, p.Snapshot())
}

func (p *Pad) ExportPDF(w io.Writer) error {
	p.mu.Lock()
	img := p.surface.Image()
	t := p.surface.Transform()
	p.mu.Unlock()
	return export.PDF(w, img, t.Width, t.Height)
}

func (p *Pad) changed() {
	p.mu.Lock()
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}
