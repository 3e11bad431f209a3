// Package signal serves the realtime websocket: one read pump and one write
// pump per connection, frames routed through the app orchestrator.
package signal

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/society/internal/app"
	"github.com/dkeye/society/internal/core"
	"github.com/dkeye/society/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

const writeWait = 5 * time.Second

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
	// Origins allowed to upgrade. Empty allows any origin.
	Origins []string
}

type SignalWSController struct {
	Orch     *app.Orchestrator
	opts     Options
	upgrader websocket.Upgrader
}

func NewSignalWSController(orch *app.Orchestrator, opts Options) *SignalWSController {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 32
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 30 * time.Second
	}
	ctl := &SignalWSController{Orch: orch, opts: opts}
	ctl.upgrader = websocket.Upgrader{CheckOrigin: ctl.checkOrigin}
	return ctl
}

func (ctl *SignalWSController) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if len(ctl.opts.Origins) == 0 || origin == "" {
		return true
	}
	return slices.Contains(ctl.opts.Origins, origin)
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal upgrades an authenticated request. The session lives until
// the client goes away, ctx ends, or the orchestrator kicks it.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, user *domain.User) {
	sid := core.SessionID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("user", string(user.ID)).Msg("new WS connection")

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.opts.ReadLimit > 0 {
		ws.SetReadLimit(ctl.opts.ReadLimit)
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Connect(sid, user, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}
