package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/society/internal/core"
	"github.com/dkeye/society/internal/protocol"
)

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.sendJSON(conn, protocol.Envelope{Type: protocol.TypePong})
}

func (ctl *SignalWSController) handleWhoAmI(sid core.SessionID, conn *WsSignalConn) {
	user, ok := ctl.Orch.Registry.UserOf(sid)
	if !ok {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("whoami on unbound session")
		return
	}
	ctl.sendJSON(conn, protocol.WhoAmI{
		Type:  protocol.TypeWhoAmI,
		User:  protocol.Sender{ID: user.ID, Name: user.Name},
		Rooms: ctl.Orch.Registry.RoomsOf(sid),
	})
}
