package net

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ScribblePad/internal/config"
	"ScribblePad/internal/pad"
	"ScribblePad/internal/state"
	"ScribblePad/internal/surface"
)

func newTestServer(t *testing.T, assets http.Handler) (*pad.Pad, *Server, *httptest.Server) {
	t.Helper()
	vp := surface.Viewport{Width: 200, Height: 100, PixelRatio: 1}
	p, err := pad.New(config.Default(), surface.ViewportFunc(func() surface.Viewport { return vp }), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, p.Initialize())

	s := NewServer("127.0.0.1:0", p, assets, zap.NewNop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Remote().Registry().CloseAll()
		ts.Close()
	})
	return p, s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg Message) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func TestServer_Health(t *testing.T) {
	_, _, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestServer_RemoteStrokeReachesPad(t *testing.T) {
	p, s, ts := newTestServer(t, nil)
	conn := dial(t, ts)

	send(t, conn, Message{Type: "start", Channel: "touch", Width: 100, Height: 50, Touches: []Touch{{ID: 1, X: 10, Y: 10}}})
	send(t, conn, Message{Type: "move", Channel: "touch", Width: 100, Height: 50, Touches: []Touch{{ID: 1, X: 60, Y: 10}}})

	require.Eventually(t, func() bool {
		rec, ok := p.Lookup(state.ScopedIdentifier(1, 1))
		return ok && rec.X == 120
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, s.Remote().Registry().Len())

	img := p.Snapshot()
	assert.NotZero(t, img.RGBAAt(70, 20).A, "stroke drawn in pad coordinates")
}

func TestServer_MalformedMessagesAreSkipped(t *testing.T) {
	p, _, ts := newTestServer(t, nil)
	conn := dial(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	send(t, conn, Message{Type: "wiggle", Channel: "touch", Touches: []Touch{{}}})
	send(t, conn, Message{Type: "start", Channel: "touch", Touches: []Touch{{ID: 2, X: 5, Y: 5}}})

	require.Eventually(t, func() bool { return len(p.Active()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_ConnectionsDoNotShareIdentifiers(t *testing.T) {
	p, _, ts := newTestServer(t, nil)
	a := dial(t, ts)
	b := dial(t, ts)

	send(t, a, Message{Type: "start", Channel: "touch", Touches: []Touch{{ID: 0, X: 10, Y: 10}}})
	send(t, b, Message{Type: "start", Channel: "touch", Touches: []Touch{{ID: 0, X: 90, Y: 90}}})

	require.Eventually(t, func() bool { return len(p.Active()) == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_DisconnectCancelsContacts(t *testing.T) {
	p, s, ts := newTestServer(t, nil)
	conn := dial(t, ts)

	send(t, conn, Message{Type: "start", Channel: "touch", Touches: []Touch{{ID: 0, X: 10, Y: 10}, {ID: 1, X: 20, Y: 20}}})
	require.Eventually(t, func() bool { return len(p.Active()) == 2 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return len(p.Active()) == 0 && s.Remote().Registry().Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_Snapshots(t *testing.T) {
	_, _, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/snapshot.png")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG")))

	resp, err = http.Get(ts.URL + "/snapshot.pdf")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))
}

func TestServer_UnknownPathsFallThroughToAssets(t *testing.T) {
	assets := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("asset " + r.URL.Path))
	})
	_, _, ts := newTestServer(t, assets)

	resp, err := http.Get(ts.URL + "/main.js")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "asset /main.js", string(body))
}

func TestServer_StartAndShutdown(t *testing.T) {
	p, err := pad.New(config.Default(), surface.ViewportFunc(func() surface.Viewport {
		return surface.Viewport{Width: 10, Height: 10, PixelRatio: 1}
	}), zap.NewNop())
	require.NoError(t, err)

	s := NewServer("127.0.0.1:0", p, nil, zap.NewNop())
	require.NoError(t, s.Start())
	assert.NotEqual(t, "127.0.0.1:0", s.Addr())

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}

func TestServer_RemotePointerDoesNotDisturbLocalStroke(t *testing.T) {
	p, _, ts := newTestServer(t, nil)
	local := func(ph state.Phase, x, y float64) bool {
		return p.Handle(state.Event{Phase: ph, Channel: state.ChannelPointer,
			Contacts: []state.TouchRecord{state.NewTouchRecord(state.PointerIdentifier, x, y)}})
	}
	require.True(t, local(state.PhaseStart, 10, 10))

	conn := dial(t, ts)
	send(t, conn, Message{Type: "start", Channel: "pointer", Touches: []Touch{{X: 150, Y: 80}}})
	require.Eventually(t, func() bool { return len(p.Active()) == 2 }, 2*time.Second, 10*time.Millisecond)

	require.True(t, local(state.PhaseMove, 12, 12))
	got, ok := p.Lookup(state.PointerIdentifier)
	require.True(t, ok)
	assert.Equal(t, state.Point{X: 12, Y: 12}, got.Point())
	img := p.Snapshot()
	assert.Zero(t, img.RGBAAt(80, 45).A, "no segment between the two devices")

	conn.Close()
	require.Eventually(t, func() bool { return len(p.Active()) == 1 }, 2*time.Second, 10*time.Millisecond)
	_, ok = p.Lookup(state.PointerIdentifier)
	assert.True(t, ok, "disconnect leaves the local stroke running")
}

func TestServer_RemoteFingerDoesNotBlockLocalMouse(t *testing.T) {
	p, _, ts := newTestServer(t, nil)
	conn := dial(t, ts)

	send(t, conn, Message{Type: "start", Channel: "touch", Touches: []Touch{{ID: 0, X: 1, Y: 1}}})
	require.Eventually(t, func() bool { return len(p.Active()) == 1 }, 2*time.Second, 10*time.Millisecond)

	ok := p.Handle(state.Event{Phase: state.PhaseStart, Channel: state.ChannelPointer,
		Contacts: []state.TouchRecord{state.NewTouchRecord(state.PointerIdentifier, 50, 50)}})
	assert.True(t, ok)
	assert.Len(t, p.Active(), 2)
}
