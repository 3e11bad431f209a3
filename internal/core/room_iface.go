package core

import (
	"github.com/dkeye/society/internal/domain"
)

// PublishResult reports delivery stats/backpressure to the hub.
type PublishResult struct {
	SendTo  int
	Dropped []SessionID
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID   domain.UserID `json:"id"`
	Name string        `json:"name"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO
	Has(sid SessionID) bool

	AddMember(sid SessionID, ms MemberSession)
	RemoveMember(sid SessionID) (remaining int)
	Broadcast(from SessionID, data Frame) PublishResult
}

type RoomInfo struct {
	ID          string `json:"id"`
	MemberCount int    `json:"memberCount"`
}

// RoomManager creates rooms on first join and drops them when the last
// member leaves. Join and Leave are atomic with respect to each other.
type RoomManager interface {
	Join(name domain.RoomName, sid SessionID, ms MemberSession) RoomService
	Leave(name domain.RoomName, sid SessionID) (remaining int)
	Get(name domain.RoomName) (RoomService, bool)
	List() []RoomInfo
}
