package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/society/internal/core"
	"github.com/dkeye/society/internal/protocol"
)

// writePump owns every write to the socket, pings included. Closing the
// connection on exit unblocks the read pump.
func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Orch.OnDisconnect(sid)
		cancel()
		c.Close()
	}()

	wait := 2 * ctl.opts.PingPeriod
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(wait))
		ctl.handleSignal(ctx, sid, c, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, sid core.SessionID, c *WsSignalConn, data []byte) {
	typ, err := protocol.TypeOf(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendJSON(c, protocol.NewError(protocol.ErrBadPayload))
		return
	}

	switch typ {
	case protocol.TypeJoin:
		ctl.handleJoin(sid, c, data)
	case protocol.TypeJoinChat:
		ctl.handleJoinChat(sid, c, data)
	case protocol.TypeLeaveChat:
		ctl.handleLeaveChat(sid, c, data)
	case protocol.TypeChat:
		ctl.handleChat(ctx, sid, c, data)
	case protocol.TypePing:
		ctl.handlePing(c)
	case protocol.TypeWhoAmI:
		ctl.handleWhoAmI(sid, c)
	default:
		log.Warn().Str("module", "signal").Str("type", typ).Msg("unknown signal")
		ctl.sendJSON(c, protocol.NewError(protocol.ErrUnknownType))
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil && !errors.Is(err, ErrClosed) {
		log.Warn().Err(err).Str("module", "signal").Msg("sendJSON dropped")
	}
}
