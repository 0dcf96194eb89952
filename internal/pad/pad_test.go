package pad

import (
	"bytes"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ScribblePad/internal/config"
	"ScribblePad/internal/state"
	"ScribblePad/internal/surface"
)

func newPad(t *testing.T, vp surface.Viewport) *Pad {
	t.Helper()
	p, err := New(config.Default(), surface.ViewportFunc(func() surface.Viewport { return vp }), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, p.Initialize())
	return p
}

func TestPad_DrawsStrokes(t *testing.T) {
	p := newPad(t, surface.Viewport{Width: 100, Height: 80, PixelRatio: 2})
	var changes atomic.Int32
	p.OnChange(func() { changes.Add(1) })

	p.Handle(state.Event{Phase: state.PhaseStart, Channel: state.ChannelTouch, Contacts: []state.TouchRecord{state.NewTouchRecord(1, 10, 10)}})
	p.Handle(state.Event{Phase: state.PhaseMove, Channel: state.ChannelTouch, Contacts: []state.TouchRecord{state.NewTouchRecord(1, 40, 10)}})

	img := p.Snapshot()
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.NotZero(t, img.RGBAAt(50, 20).A)
	assert.Equal(t, int32(2), changes.Load())
	assert.Len(t, p.Active(), 1)
}

func TestPad_DroppedEventDoesNotNotify(t *testing.T) {
	p := newPad(t, surface.Viewport{Width: 10, Height: 10, PixelRatio: 1})
	var changes atomic.Int32
	p.OnChange(func() { changes.Add(1) })

	p.Handle(state.Event{Phase: state.PhaseStart, Channel: state.ChannelPointer, Emulated: true,
		Contacts: []state.TouchRecord{state.NewTouchRecord(0, 1, 1)}})
	assert.Zero(t, changes.Load())
}

func TestPad_ConcurrentBatchesStayConsistent(t *testing.T) {
	p := newPad(t, surface.Viewport{Width: 200, Height: 200, PixelRatio: 1})

	var wg sync.WaitGroup
	for src := uint32(1); src <= 4; src++ {
		wg.Add(1)
		go func(src uint32) {
			defer wg.Done()
			id := state.ScopedIdentifier(src, 0)
			p.Handle(state.Event{Phase: state.PhaseStart, Channel: state.ChannelTouch, Contacts: []state.TouchRecord{state.NewTouchRecord(id, 0, 0)}})
			for i := 0; i < 50; i++ {
				p.Handle(state.Event{Phase: state.PhaseMove, Channel: state.ChannelTouch, Contacts: []state.TouchRecord{state.NewTouchRecord(id, float64(i), float64(src))}})
			}
			if src%2 == 0 {
				p.Handle(state.Event{Phase: state.PhaseEnd, Channel: state.ChannelTouch, Contacts: []state.TouchRecord{state.NewTouchRecord(id, 1, 1)}})
			}
		}(src)
	}
	wg.Wait()

	active := p.Active()
	require.Len(t, active, 2)
	for _, r := range active {
		rec, ok := p.Lookup(r.Identifier)
		require.True(t, ok)
		assert.Equal(t, 49.0, rec.X)
	}
}

func TestPad_Export(t *testing.T) {
	p := newPad(t, surface.Viewport{Width: 30, Height: 20, PixelRatio: 2})

	var buf bytes.Buffer
	require.NoError(t, p.ExportPNG(&buf))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 60, img.Bounds().Dx())

	buf.Reset()
	require.NoError(t, p.ExportPDF(&buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestPad_RejectsBadStroke(t *testing.T) {
	cfg := config.Default()
	cfg.Stroke.Width = 0
	_, err := New(cfg, surface.ViewportFunc(func() surface.Viewport { return surface.Viewport{} }), zap.NewNop())
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestPad_InitializeFailsWithoutContext(t *testing.T) {
	cfg := config.Default()
	cfg.Surface.MaxDimension = 64
	p, err := New(cfg, surface.ViewportFunc(func() surface.Viewport {
		return surface.Viewport{Width: 100, Height: 100, PixelRatio: 1}
	}), zap.NewNop())
	require.NoError(t, err)
	assert.ErrorIs(t, p.Initialize(), surface.ErrNoContext)
}
