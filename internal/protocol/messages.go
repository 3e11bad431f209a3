// Package protocol defines the JSON frames exchanged over the realtime
// websocket. Every frame carries a "type" discriminator.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/dkeye/society/internal/domain"
)

// Client to server.
const (
	TypeJoin      = "join"
	TypeJoinChat  = "join_chat"
	TypeLeaveChat = "leave_chat"
	TypeChat      = "chat"
	TypePing      = "ping"
	// TypeWhoAmI is answered with a frame of the same type.
	TypeWhoAmI = "whoami"
)

// Server to client.
const (
	TypeJoined       = "joined"
	TypeLeft         = "left"
	TypeNotification = "notification"
	TypeChatMessage  = "chat_message"
	TypePong         = "pong"
	TypeError        = "error"
)

// Error codes carried by ErrorMessage.
const (
	ErrBadPayload    = "bad_payload"
	ErrUnknownType   = "unknown_type"
	ErrForbiddenRoom = "forbidden_room"
	ErrInvalidRoom   = "invalid_room"
	ErrNotInRoom     = "not_in_room"
	ErrRateLimited   = "rate_limited"
	ErrEmptyMessage  = "empty_message"
)

type Envelope struct {
	Type string `json:"type"`
}

type Join struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"userId"`
}

type Room struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

type Chat struct {
	Type string `json:"type"`
	Room string `json:"room"`
	Text string `json:"text"`
}

type Notification struct {
	Type         string               `json:"type"`
	Notification *domain.Notification `json:"notification"`
}

type Sender struct {
	ID   domain.UserID `json:"id"`
	Name string        `json:"name"`
}

type ChatMessage struct {
	Type string    `json:"type"`
	Room string    `json:"room"`
	From Sender    `json:"from"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// WhoAmI reports the identity bound to the socket and the rooms it is in.
type WhoAmI struct {
	Type  string            `json:"type"`
	User  Sender            `json:"user"`
	Rooms []domain.RoomName `json:"rooms"`
}

type Error struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func NewJoin(id domain.UserID) Join { return Join{Type: TypeJoin, UserID: id} }
func NewRoom(typ, room string) Room { return Room{Type: typ, Room: room} }
func NewError(code string) Error    { return Error{Type: TypeError, Error: code} }
func NewNotification(n *domain.Notification) Notification {
	return Notification{Type: TypeNotification, Notification: n}
}

// TypeOf peeks at the discriminator of a raw frame.
func TypeOf(data []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", err
	}
	return env.Type, nil
}
