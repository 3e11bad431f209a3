package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/society/internal/app"
	"github.com/dkeye/society/internal/core"
	"github.com/dkeye/society/internal/domain"
	"github.com/dkeye/society/internal/protocol"
)

func (ctl *SignalWSController) handleJoin(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p protocol.Join
	if err := json.Unmarshal(data, &p); err != nil || p.UserID == "" {
		log.Warn().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendJSON(conn, protocol.NewError(protocol.ErrBadPayload))
		return
	}
	if _, err := ctl.Orch.JoinPersonal(sid, p.UserID); err != nil {
		ctl.sendError(conn, err)
		return
	}
	ctl.sendJSON(conn, protocol.NewRoom(protocol.TypeJoined, string(p.UserID)))
}

func (ctl *SignalWSController) handleJoinChat(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p protocol.Room
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendJSON(conn, protocol.NewError(protocol.ErrBadPayload))
		return
	}
	room, err := ctl.Orch.JoinChat(sid, p.Room)
	if err != nil {
		ctl.sendError(conn, err)
		return
	}
	ctl.sendJSON(conn, protocol.NewRoom(protocol.TypeJoined, room.ID()))
}

func (ctl *SignalWSController) handleLeaveChat(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p protocol.Room
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendJSON(conn, protocol.NewError(protocol.ErrBadPayload))
		return
	}
	room, err := ctl.Orch.LeaveChat(sid, p.Room)
	if err != nil {
		ctl.sendError(conn, err)
		return
	}
	ctl.sendJSON(conn, protocol.NewRoom(protocol.TypeLeft, room.ID()))
}

func (ctl *SignalWSController) handleChat(ctx context.Context, sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p protocol.Chat
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendJSON(conn, protocol.NewError(protocol.ErrBadPayload))
		return
	}
	if err := ctl.Orch.SendChat(ctx, sid, p.Room, p.Text); err != nil {
		ctl.sendError(conn, err)
	}
}

func (ctl *SignalWSController) sendError(conn *WsSignalConn, err error) {
	ctl.sendJSON(conn, protocol.NewError(errorCode(err)))
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, app.ErrForeignRoom):
		return protocol.ErrForbiddenRoom
	case errors.Is(err, domain.ErrRoomEmpty), errors.Is(err, domain.ErrRoomTooLong):
		return protocol.ErrInvalidRoom
	case errors.Is(err, app.ErrNotInRoom):
		return protocol.ErrNotInRoom
	case errors.Is(err, app.ErrRateLimited):
		return protocol.ErrRateLimited
	case errors.Is(err, app.ErrEmptyMessage):
		return protocol.ErrEmptyMessage
	default:
		log.Error().Err(err).Str("module", "signal").Msg("unmapped error")
		return protocol.ErrBadPayload
	}
}
