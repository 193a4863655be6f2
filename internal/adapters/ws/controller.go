// Package ws owns the WebSocket transport: the upgrade, the per-connection
// read/write pumps, and the decode-then-dispatch of inbound events into the
// relay hub. The hub never touches a raw socket; it only sees core.SignalConn.
package ws

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/avdeev/chatline/internal/core"
	"github.com/avdeev/chatline/internal/relay"
)

const writeWait = 5 * time.Second

// anonymousID is the sentinel some clients send when they have no user yet.
const anonymousID = "undefined"

var upgrader = websocket.Upgrader{
	// TODO: restrict origins once the web client's deploy origin is fixed.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	hub        *relay.Hub
	limiter    *RateLimiter
	readLimit  int64
	pingPeriod time.Duration
}

func NewController(hub *relay.Hub, limiter *RateLimiter, readLimit int64, pingPeriod time.Duration) *Controller {
	return &Controller{
		hub:        hub,
		limiter:    limiter,
		readLimit:  readLimit,
		pingPeriod: pingPeriod,
	}
}

// socketConn is an indirection over *websocket.Conn to ease testing.
type socketConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() net.Addr
	Close() error
}

// connCtx is the explicit per-connection state: the claimed identity, the
// socket, and the outbound buffer. It implements core.SignalConn.
//
// The hub may close a connection on a failed send while it is still in the
// registry; the entry only goes away when the read pump's teardown runs.
// TrySend therefore shares a lock with Close so a send after Close reports
// core.ErrClosed instead of hitting the closed channel.
type connCtx struct {
	userID string
	conn   socketConn

	mu     sync.Mutex
	closed bool
	send   chan core.Frame
}

func (c *connCtx) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrClosed
	}
	select {
	case c.send <- f:
		return nil
	default:
		return core.ErrBackpressure
	}
}

func (c *connCtx) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	_ = c.conn.Close()
}

// Handle upgrades the request and wires the connection into the hub. The
// identity comes from the ?userId= handshake parameter; a missing or
// sentinel value leaves the connection anonymous (accepted, but not
// registered for presence).
func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	userID := c.Query("userId")
	if userID == anonymousID {
		userID = ""
	}

	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.ws").Msg("upgrade failed")
		return
	}

	cc := &connCtx{
		userID: userID,
		conn:   socket,
		send:   make(chan core.Frame, 32),
	}

	log.Info().Str("module", "adapters.ws").Str("user", userID).Msg("connection established")
	ctl.hub.Connect(userID, cc)

	pumpCtx, cancel := context.WithCancel(ctx)
	go ctl.writePump(pumpCtx, cc)
	go ctl.readPump(pumpCtx, cancel, cc)
}

func (ctl *Controller) writePump(ctx context.Context, cc *connCtx) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer func() {
		ticker.Stop()
		cc.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-cc.send:
			if !ok {
				return
			}
			_ = cc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "adapters.ws").Str("user", cc.userID).Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = cc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, cc *connCtx) {
	pongWait := ctl.pingPeriod * 10 / 9
	defer func() {
		cancel()
		ctl.hub.Disconnect(cc.userID, cc)
		if cc.userID != "" {
			ctl.limiter.Forget(cc.userID)
		}
		cc.Close()
		log.Info().Str("module", "adapters.ws").Str("user", cc.userID).Msg("connection closed")
	}()

	cc.conn.SetReadLimit(ctl.readLimit)
	_ = cc.conn.SetReadDeadline(time.Now().Add(pongWait))
	cc.conn.SetPongHandler(func(string) error {
		return cc.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := cc.conn.ReadMessage()
			if err != nil {
				return
			}
			ctl.handleFrame(cc, data)
		}
	}
}

func (ctl *Controller) handleFrame(cc *connCtx, data []byte) {
	key := cc.userID
	if key == "" {
		key = cc.conn.RemoteAddr().String()
	}
	if !ctl.limiter.Allow(key) {
		log.Warn().Str("module", "adapters.ws").Str("user", cc.userID).Msg("rate limit exceeded, dropping event")
		return
	}

	ev, err := core.DecodeInbound(data)
	if err != nil {
		// Malformed payloads are dropped; the connection stays open.
		log.Warn().Err(err).Str("module", "adapters.ws").Str("user", cc.userID).Msg("dropping bad event")
		return
	}
	ctl.hub.HandleEvent(cc.userID, ev)
}
