package net

import (
	"errors"
	"fmt"
	"math"

	"ScribblePad/internal/state"
	"ScribblePad/internal/surface"
)

var ErrBadMessage = errors.New("malformed remote input message")

// Message is one input batch sent by the remote pad page.
type Message struct {
	Type     string  `json:"type"`
	Channel  string  `json:"channel"`
	Emulated bool    `json:"emulated,omitempty"`
	Width    float64 `json:"width,omitempty"`
	Height   float64 `json:"height,omitempty"`
	Touches  []Touch `json:"touches"`
}

type Touch struct {
	ID int32   `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

var phases = map[string]state.Phase{
	"start":  state.PhaseStart,
	"move":   state.PhaseMove,
	"end":    state.PhaseEnd,
	"cancel": state.PhaseCancel,
}

var channels = map[string]state.Channel{
	"pointer": state.ChannelPointer,
	"touch":   state.ChannelTouch,
}

// Event converts the message into a tracker batch. Touch and pointer
// identifiers are scoped to source so two devices never share one, nor
// share the local window's pointer. Coordinates are scaled
// from the sender's viewport onto the pad's when both are known.
func (m Message) Event(source uint32, target surface.Transform) (state.Event, error) {
	phase, ok := phases[m.Type]
	if !ok {
		return state.Event{}, fmt.Errorf("%w: type %q", ErrBadMessage, m.Type)
	}
	ch, ok := channels[m.Channel]
	if !ok {
		return state.Event{}, fmt.Errorf("%w: channel %q", ErrBadMessage, m.Channel)
	}
	if len(m.Touches) == 0 {
		return state.Event{}, fmt.Errorf("%w: no touches", ErrBadMessage)
	}

	sx, sy := 1.0, 1.0
	if m.Width > 0 && m.Height > 0 && target.Width > 0 && target.Height > 0 {
		sx, sy = target.Width/m.Width, target.Height/m.Height
	}

	contacts := make([]state.TouchRecord, 0, len(m.Touches))
	for _, t := range m.Touches {
		if math.IsNaN(t.X) || math.IsNaN(t.Y) || math.IsInf(t.X, 0) || math.IsInf(t.Y, 0) {
			return state.Event{}, fmt.Errorf("%w: non-finite position for touch %d", ErrBadMessage, t.ID)
		}
		id := state.PointerIdentifierFor(source)
		if ch == state.ChannelTouch {
			// -1 in the low word is the source's pointer.
			if t.ID < 0 {
				return state.Event{}, fmt.Errorf("%w: negative touch id %d", ErrBadMessage, t.ID)
			}
			id = state.ScopedIdentifier(source, t.ID)
		}
		contacts = append(contacts, state.NewTouchRecord(id, t.X*sx, t.Y*sy))
	}
	return state.Event{Phase: phase, Channel: ch, Contacts: contacts, Source: source, Emulated: m.Emulated}, nil
}
