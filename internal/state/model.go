package state

import (
	"image/color"
	"time"
)

type Point struct{ X, Y float64 }

// TouchRecord is the last observed position of one active contact.
type TouchRecord struct {
	Identifier int64
	X, Y       float64
}

// NewTouchRecord copies only what the tracker needs out of a platform event.
func NewTouchRecord(id int64, x, y float64) TouchRecord {
	return TouchRecord{Identifier: id, X: x, Y: y}
}

func (t TouchRecord) Point() Point { return Point{X: t.X, Y: t.Y} }

// PointerIdentifier is the synthetic identifier of the local window's pointer.
const PointerIdentifier int64 = -1

// LocalSource is the input source number of the local window. Remote
// devices are numbered from 1.
const LocalSource uint32 = 0

// ScopedIdentifier places the identifiers of independent input sources
// (local window, each remote device) in one namespace.
func ScopedIdentifier(source uint32, id int32) int64 {
	return int64(source)<<32 | int64(uint32(id))
}

// PointerIdentifierFor is the synthetic pointer identifier of one source.
// Each source models exactly one pointer.
func PointerIdentifierFor(source uint32) int64 {
	if source == LocalSource {
		return PointerIdentifier
	}
	return ScopedIdentifier(source, -1)
}

// SourceOf recovers the source a scoped identifier belongs to.
func SourceOf(id int64) uint32 {
	if id == PointerIdentifier {
		return LocalSource
	}
	return uint32(uint64(id) >> 32)
}

// IsPointerIdentifier reports whether id is some source's synthetic pointer.
func IsPointerIdentifier(id int64) bool {
	return id == PointerIdentifierFor(SourceOf(id))
}

// Style is the stroke style applied to every primitive.
type Style struct {
	Color color.Color
	Width float64
}

func DefaultStyle() Style {
	return Style{Color: color.Black, Width: 4}
}

type Phase int

const (
	PhaseStart Phase = iota
	PhaseMove
	PhaseEnd
	PhaseCancel
)

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseMove:
		return "move"
	case PhaseEnd:
		return "end"
	case PhaseCancel:
		return "cancel"
	}
	return "unknown"
}

// Channel is an input event family. Channels are bit flags so a tracker
// can register several at once.
type Channel uint8

const (
	ChannelPointer Channel = 1 << iota
	ChannelTouch

	AllChannels = ChannelPointer | ChannelTouch
)

func (c Channel) String() string {
	switch c {
	case ChannelPointer:
		return "pointer"
	case ChannelTouch:
		return "touch"
	case AllChannels:
		return "pointer+touch"
	}
	return "none"
}

// Event is one platform batch: every contact that changed in a single
// start, move, end or cancel notification.
type Event struct {
	Phase    Phase
	Channel  Channel
	Contacts []TouchRecord
	// Source is the device the batch came from. Touch identifiers in the
	// batch are expected to be scoped to it.
	Source   uint32
	// Emulated marks a pointer event the platform synthesised from touch input.
	Emulated bool
	At       time.Time
}

// Renderer receives the drawing primitives, in logical coordinates.
type Renderer interface {
	Dot(center Point, radius float64, c color.Color)
	Line(from, to Point, width float64, c color.Color)
}
