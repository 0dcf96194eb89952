package net

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ScribblePad/internal/state"
	"ScribblePad/internal/surface"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Sink is the pad remote input is applied to.
type Sink interface {
	Handle(ev state.Event) bool
	Transform() surface.Transform
	ExportPNG(w io.Writer) error
	ExportPDF(w io.Writer) error
}

// Remote upgrades requests to WebSockets and feeds their input batches to
// the sink. Source 0 belongs to the local window, so remote sources start at 1.
type Remote struct {
	sink     Sink
	registry *Registry
	upgrader websocket.Upgrader
	logger   *zap.Logger
	sources  atomic.Uint32
}

func NewRemote(sink Sink, logger *zap.Logger) *Remote {
	logger = logger.Named("remote")
	return &Remote{
		sink:     sink,
		registry: NewRegistry(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The page is served by this same process on the LAN.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (rm *Remote) Registry() *Registry { return rm.registry }

func (rm *Remote) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := rm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		rm.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &remoteConn{
		id:      uuid.NewString(),
		source:  rm.sources.Add(1),
		addr:    r.RemoteAddr,
		ws:      ws,
		remote:  rm,
		touches: make(map[int64]struct{}),
		done:    make(chan struct{}),
	}
	c.logger = rm.logger.With(zap.String("conn", c.id))
	rm.registry.Add(c)
	go c.pingLoop()
	c.readLoop()
}

type remoteConn struct {
	id     string
	source uint32
	addr   string
	ws     *websocket.Conn
	remote *Remote
	logger *zap.Logger

	// contacts this connection started and has not finished
	touches map[int64]struct{}
	pointer bool

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func (c *remoteConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

func (c *remoteConn) readLoop() {
	defer func() {
		c.cancelAll()
		c.remote.registry.Remove(c)
		c.close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			c.logger.Debug("ignoring binary message")
			continue
		}
		c.apply(data)
	}
}

func (c *remoteConn) apply(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Debug("undecodable message", zap.Error(err))
		return
	}
	ev, err := msg.Event(c.source, c.remote.sink.Transform())
	if err != nil {
		c.logger.Debug("rejected message", zap.Error(err))
		return
	}
	if !c.remote.sink.Handle(ev) {
		return
	}
	c.track(ev)
}

func (c *remoteConn) track(ev state.Event) {
	for _, t := range ev.Contacts {
		switch {
		case ev.Channel == state.ChannelPointer && ev.Phase == state.PhaseStart:
			c.pointer = true
		case ev.Channel == state.ChannelPointer && ev.Phase != state.PhaseMove:
			c.pointer = false
		case ev.Phase == state.PhaseStart:
			c.touches[t.Identifier] = struct{}{}
		case ev.Phase == state.PhaseEnd || ev.Phase == state.PhaseCancel:
			delete(c.touches, t.Identifier)
		}
	}
}

// cancelAll drops whatever the device still had down when it went away.
func (c *remoteConn) cancelAll() {
	if len(c.touches) > 0 {
		contacts := make([]state.TouchRecord, 0, len(c.touches))
		for id := range c.touches {
			contacts = append(contacts, state.NewTouchRecord(id, 0, 0))
		}
		c.remote.sink.Handle(state.Event{Phase: state.PhaseCancel, Channel: state.ChannelTouch, Source: c.source, Contacts: contacts})
		c.touches = map[int64]struct{}{}
	}
	if c.pointer {
		c.remote.sink.Handle(state.Event{Phase: state.PhaseCancel, Channel: state.ChannelPointer, Source: c.source,
			Contacts: []state.TouchRecord{state.NewTouchRecord(state.PointerIdentifierFor(c.source), 0, 0)}})
		c.pointer = false
	}
}

func (c *remoteConn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
				c.close()
				return
			}
		}
	}
}
