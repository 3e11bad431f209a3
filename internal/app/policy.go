package app

import "github.com/dkeye/society/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

type Policy interface {
	OnBackPressure(room core.RoomService, sid core.SessionID) BackpressureAction
}

// SimplePolicy disconnects a session whose send buffer is full. Its client
// reconnects and refetches what it missed.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.RoomService, core.SessionID) BackpressureAction {
	return KickMember
}
