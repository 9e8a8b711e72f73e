package ws

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"vpinscope.com/internal/stream"
	"vpinscope.com/pkg/logger"
	"vpinscope.com/pkg/safe"
)

// Server upgrades dashboard connections and registers each one as an
// event bus subscriber. The bus gives every connection its own delivery
// goroutine, so writes here may block on the socket without touching the
// ingestion path; a write error unregisters the connection.
type Server struct {
	bus      *stream.Bus
	Upgrader websocket.Upgrader
	ctx      context.Context

	PongWait  time.Duration
	PingPeriod time.Duration
	WriteWait time.Duration
	ReadLimit int64
}

func NewServer(ctx context.Context, bus *stream.Bus) *Server {
	return &Server{
		bus: bus,
		ctx: ctx,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		PongWait:  60 * time.Second,
		PingPeriod: 30 * time.Second,
		WriteWait: 5 * time.Second,
		ReadLimit: 1 << 10,
	}
}

func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &conn{ws: wsConn, writeWait: s.WriteWait}
	// Subscribing delivers the reading backfill before any live event.
	id := s.bus.Subscribe(c)
	logger.Info(r.Context(), "ws client connected", zap.String("subscriber", id))

	safe.Go(func() { s.readPump(c, id) })
	safe.Go(func() { s.pingLoop(c) })
}

// readPump owns the read side: pong deadlines and client disconnect.
// Clients do not speak a protocol; anything they send is a keepalive.
func (s *Server) readPump(c *conn, id string) {
	defer func() {
		c.close()
		s.bus.Unsubscribe(id)
	}()

	c.ws.SetReadLimit(s.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(s.PongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(s.PongWait))
		return nil
	})
	c.ws.SetCloseHandler(func(code int, text string) error {
		_ = c.ws.SetReadDeadline(time.Now()) // force ReadMessage to return
		return nil
	})

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logger.Debug(s.ctx, "ws read timeout", zap.String("subscriber", id))
			}
			return
		}
	}
}

func (s *Server) pingLoop(c *conn) {
	ticker := time.NewTicker(s.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if c.closed.Load() {
				return
			}
			deadline := time.Now().Add(s.WriteWait)
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				return
			}
		}
	}
}

// conn adapts one websocket connection to stream.Subscriber. Send runs
// on the bus pump goroutine, the only writer of data frames; control
// frames from pingLoop are safe concurrently per gorilla's contract.
type conn struct {
	ws        *websocket.Conn
	writeWait time.Duration
	closed    atomic.Bool
}

func (c *conn) Send(ctx context.Context, ev stream.Event) error {
	if c.closed.Load() {
		return websocket.ErrCloseSent
	}
	b, err := json.Marshal(ServerMsg{Type: string(ev.Type), Data: ev.Payload})
	if err != nil {
		return err
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

func (c *conn) close() {
	if c.closed.CompareAndSwap(false, true) {
		_ = c.ws.Close()
	}
}
