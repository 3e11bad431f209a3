// Package realtime is the client side of the society websocket: one live
// connection per signed-in user, the personal room joined on every connect,
// and chat rooms joined on demand.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"

	"github.com/dkeye/society/internal/domain"
	"github.com/dkeye/society/internal/protocol"
)

var ErrNotConnected = errors.New("realtime: not connected")

// errDropped marks a connection that closed before it counted as stable.
var errDropped = errors.New("realtime: connection dropped")

// Conn is the part of *websocket.Conn the channel needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// TokenSource yields the bearer credential, read on every dial.
type TokenSource interface {
	Token() (string, error)
}

type Option func(*Channel)

// WithQueue keeps JoinRoom and LeaveRoom calls made while disconnected and
// sends them, in order, after the next personal-room join.
func WithQueue() Option { return func(c *Channel) { c.queueing = true } }

// WithMessageHandler receives every inbound frame on the read goroutine.
func WithMessageHandler(fn func([]byte)) Option { return func(c *Channel) { c.onMessage = fn } }

// WithBackoff sets the reconnect delays. A zero base disables reconnects.
// The delay only resets after a connection has stayed up for stableAfter.
func WithBackoff(base, max time.Duration) Option {
	return func(c *Channel) {
		c.backoffBase = base
		c.backoffMax = max
	}
}

type Channel struct {
	endpoint string
	dialer   Dialer
	tokens   TokenSource

	queueing    bool
	onMessage   func([]byte)
	backoffBase time.Duration
	backoffMax  time.Duration
	stableAfter time.Duration

	mu        sync.Mutex
	user      *domain.User
	conn      Conn
	connected bool
	stop      context.CancelFunc
	queue     []any
	watchers  []func(bool)
	reported  bool

	// notifyMu orders liveness delivery; it is taken before mu.
	notifyMu sync.Mutex
	writeMu  sync.Mutex
}

func NewChannel(endpoint string, dialer Dialer, tokens TokenSource, opts ...Option) *Channel {
	c := &Channel{
		endpoint:    endpoint,
		dialer:      dialer,
		tokens:      tokens,
		backoffBase: 500 * time.Millisecond,
		backoffMax:  30 * time.Second,
		stableAfter: 10 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetUser follows the signed-in identity. Nil tears the connection down
// before returning; a different user id replaces the connection; the same
// id is a no-op.
func (c *Channel) SetUser(u *domain.User) {
	c.mu.Lock()
	if u != nil && c.user != nil && c.user.ID == u.ID {
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	if u == nil {
		c.mu.Unlock()
		c.publish()
		return
	}
	c.user = u
	ctx, cancel := context.WithCancel(context.Background())
	c.stop = cancel
	c.mu.Unlock()
	c.publish()

	log.Info().Str("module", "realtime.client").Str("user", string(u.ID)).Msg("starting channel")
	go c.run(ctx, u)
}

// Close tears down unconditionally.
func (c *Channel) Close() {
	c.SetUser(nil)
}

func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Watch calls fn on every liveness change, in order. fn must not block or
// call back into the channel.
func (c *Channel) Watch(fn func(connected bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
}

func (c *Channel) JoinRoom(id string) {
	c.sendOrQueue(protocol.NewRoom(protocol.TypeJoinChat, id))
}

func (c *Channel) LeaveRoom(id string) {
	c.sendOrQueue(protocol.NewRoom(protocol.TypeLeaveChat, id))
}

// SendChat posts text to a chat room. Unlike room requests it reports a
// missing connection.
func (c *Channel) SendChat(room, text string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return c.write(conn, protocol.Chat{Type: protocol.TypeChat, Room: room, Text: text})
}

func (c *Channel) sendOrQueue(frame protocol.Room) {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		if c.queueing {
			c.queue = append(c.queue, frame)
		} else {
			log.Debug().Str("module", "realtime.client").Str("type", frame.Type).Str("room", frame.Room).Msg("dropped while disconnected")
		}
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	if err := c.write(conn, frame); err != nil {
		log.Warn().Err(err).Str("module", "realtime.client").Str("type", frame.Type).Msg("send failed")
	}
}

func (c *Channel) write(conn Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (c *Channel) teardownLocked() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.user = nil
	c.queue = nil
	c.connected = false
}

// publish reports the current liveness if it differs from the last report.
// Holding notifyMu across delivery keeps watchers from seeing a stale state
// after a newer one.
func (c *Channel) publish() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.mu.Lock()
	state := c.connected
	if state == c.reported {
		c.mu.Unlock()
		return
	}
	c.reported = state
	watchers := slices.Clone(c.watchers)
	c.mu.Unlock()
	for _, fn := range watchers {
		fn(state)
	}
}

func (c *Channel) run(ctx context.Context, u *domain.User) {
	for ctx.Err() == nil {
		err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
			conn, err := c.dial(ctx)
			if err != nil {
				log.Debug().Err(err).Str("module", "realtime.client").Msg("dial failed")
				return retry.RetryableError(err)
			}
			if up := c.serve(ctx, u, conn); up < c.stableAfter {
				return retry.RetryableError(errDropped)
			}
			return nil
		})
		if err != nil || c.backoffBase <= 0 {
			return
		}
	}
}

func (c *Channel) backoff() retry.Backoff {
	if c.backoffBase <= 0 {
		return retry.WithMaxRetries(0, retry.NewConstant(time.Millisecond))
	}
	return retry.WithCappedDuration(c.backoffMax, retry.NewExponential(c.backoffBase))
}

func (c *Channel) dial(ctx context.Context) (Conn, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	return c.dialer.Dial(ctx, c.endpoint, header)
}

// serve runs one connection from connect to disconnect and reports how
// long it stayed up.
func (c *Channel) serve(ctx context.Context, u *domain.User, conn Conn) time.Duration {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return 0
	}
	start := time.Now()
	c.conn = conn
	c.connected = true
	pending := c.queue
	c.queue = nil
	c.mu.Unlock()

	log.Info().Str("module", "realtime.client").Str("user", string(u.ID)).Msg("connected")
	if err := c.write(conn, protocol.NewJoin(u.ID)); err != nil {
		log.Warn().Err(err).Str("module", "realtime.client").Msg("personal join failed")
	}
	for _, frame := range pending {
		if err := c.write(conn, frame); err != nil {
			log.Warn().Err(err).Str("module", "realtime.client").Msg("queued send failed")
		}
	}
	c.publish()

	c.readLoop(conn)

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.connected = false
	}
	c.mu.Unlock()
	_ = conn.Close()
	up := time.Since(start)
	log.Info().Str("module", "realtime.client").Str("user", string(u.ID)).Dur("uptime", up).Msg("disconnected")
	c.publish()
	return up
}

func (c *Channel) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if c.onMessage != nil {
			c.onMessage(data)
			continue
		}
		if typ, err := protocol.TypeOf(data); err == nil && typ == protocol.TypeError {
			var e protocol.Error
			_ = json.Unmarshal(data, &e)
			log.Warn().Str("module", "realtime.client").Str("error", e.Error).Msg("server error frame")
		}
	}
}
