package state

import (
	"time"

	"go.uber.org/zap"
)

const DefaultDedupWindow = 500 * time.Millisecond

// Tracker turns contact lifecycle events into drawing primitives.
// It is not safe for concurrent use; the owner serialises events.
type Tracker struct {
	renderer    Renderer
	touches     *ActiveTouchSet
	style       Style
	channels    Channel
	closingDot  bool
	dedupWindow time.Duration
	now         func() time.Time
	logger      *zap.Logger

	// last touch end or cancel per source, for pointer dedup
	lastTouchEnd map[uint32]time.Time
}

type Option func(*Tracker)

func WithStyle(s Style) Option { return func(t *Tracker) { t.SetStyle(s) } }

// WithChannels selects which input families are registered.
func WithChannels(c Channel) Option { return func(t *Tracker) { t.channels = c } }

// WithClosingDot controls whether contact-end also stamps a dot.
func WithClosingDot(on bool) Option { return func(t *Tracker) { t.closingDot = on } }

func WithDedupWindow(d time.Duration) Option { return func(t *Tracker) { t.dedupWindow = d } }

func WithLogger(l *zap.Logger) Option { return func(t *Tracker) { t.logger = l } }

func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

func NewTracker(r Renderer, opts ...Option) *Tracker {
	t := &Tracker{
		renderer:    r,
		touches:     NewActiveTouchSet(),
		style:       DefaultStyle(),
		channels:    AllChannels,
		closingDot:  true,
		dedupWindow: DefaultDedupWindow,
		now:         time.Now,
		logger:      zap.NewNop(),

		lastTouchEnd: make(map[uint32]time.Time),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Style() Style { return t.style }

// SetStyle replaces the stroke style. Zero fields fall back to the default.
func (t *Tracker) SetStyle(s Style) {
	def := DefaultStyle()
	if s.Color == nil {
		s.Color = def.Color
	}
	if s.Width <= 0 {
		s.Width = def.Width
	}
	t.style = s
}

func (t *Tracker) Active() []TouchRecord { return t.touches.Records() }

func (t *Tracker) Lookup(id int64) (TouchRecord, bool) { return t.touches.Lookup(id) }

// PointerDown reports whether source has a pointer stroke in progress.
func (t *Tracker) PointerDown(source uint32) bool {
	return t.touches.Index(PointerIdentifierFor(source)) >= 0
}

func (t *Tracker) Start(c Channel, contacts ...TouchRecord) bool {
	return t.Handle(Event{Phase: PhaseStart, Channel: c, Contacts: contacts})
}

func (t *Tracker) Move(c Channel, contacts ...TouchRecord) bool {
	return t.Handle(Event{Phase: PhaseMove, Channel: c, Contacts: contacts})
}

func (t *Tracker) End(c Channel, contacts ...TouchRecord) bool {
	return t.Handle(Event{Phase: PhaseEnd, Channel: c, Contacts: contacts})
}

func (t *Tracker) Cancel(c Channel, contacts ...TouchRecord) bool {
	return t.Handle(Event{Phase: PhaseCancel, Channel: c, Contacts: contacts})
}

// Handle applies one batch completely. Each contact is looked up by its
// own identifier so contacts in the same batch never affect each other.
// It reports false when the event was dropped as a whole.
func (t *Tracker) Handle(ev Event) bool {
	if t.channels&ev.Channel == 0 {
		return false
	}
	at := ev.At
	if at.IsZero() {
		at = t.now()
	}
	if ev.Channel == ChannelPointer && t.duplicatePointer(ev, at) {
		t.logger.Debug("dropped pointer event duplicating touch input",
			zap.Stringer("phase", ev.Phase), zap.Bool("emulated", ev.Emulated))
		return false
	}

	for _, c := range ev.Contacts {
		if ev.Channel == ChannelPointer {
			c.Identifier = PointerIdentifierFor(ev.Source)
		}
		switch ev.Phase {
		case PhaseStart:
			t.start(c)
		case PhaseMove:
			t.move(c)
		case PhaseEnd:
			t.end(c)
		case PhaseCancel:
			t.cancel(c)
		}
	}

	if ev.Channel == ChannelTouch && (ev.Phase == PhaseEnd || ev.Phase == PhaseCancel) {
		t.lastTouchEnd[ev.Source] = at
	}
	return true
}

// duplicatePointer decides whether a pointer event is a compatibility
// copy of touch input from the same source. Only relevant when both
// families are registered.
func (t *Tracker) duplicatePointer(ev Event, at time.Time) bool {
	if t.channels != AllChannels {
		return false
	}
	if ev.Emulated {
		return true
	}
	if ev.Phase != PhaseStart {
		return false
	}
	if t.touchContacts(ev.Source) > 0 {
		return true
	}
	last, ok := t.lastTouchEnd[ev.Source]
	return ok && at.Sub(last) < t.dedupWindow
}

func (t *Tracker) touchContacts(source uint32) int {
	n := 0
	for _, r := range t.touches.records {
		if SourceOf(r.Identifier) == source && !IsPointerIdentifier(r.Identifier) {
			n++
		}
	}
	return n
}

func (t *Tracker) start(c TouchRecord) {
	t.touches.Add(c)
	t.renderer.Dot(c.Point(), t.style.Width/2, t.style.Color)
}

func (t *Tracker) move(c TouchRecord) {
	prev, ok := t.touches.Update(c)
	if !ok {
		return
	}
	t.renderer.Line(prev.Point(), c.Point(), t.style.Width, t.style.Color)
}

func (t *Tracker) end(c TouchRecord) {
	prev, ok := t.touches.Remove(c.Identifier)
	if !ok {
		return
	}
	t.renderer.Line(prev.Point(), c.Point(), t.style.Width, t.style.Color)
	if t.closingDot {
		t.renderer.Dot(c.Point(), t.style.Width/2, t.style.Color)
	}
}

func (t *Tracker) cancel(c TouchRecord) {
	t.touches.Remove(c.Identifier)
}
