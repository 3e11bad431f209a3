package domain

import (
	"errors"
	"strings"
)

const MaxRoomIDLen = 64

var (
	ErrRoomEmpty   = errors.New("room id empty")
	ErrRoomTooLong = errors.New("room id too long")
)

// RoomName is the hub-internal, namespaced address of a room.
type RoomName string

const (
	personalPrefix = "user:"
	chatPrefix     = "chat:"
)

// PersonalRoom is the notification room of a single user.
func PersonalRoom(id UserID) RoomName { return RoomName(personalPrefix + string(id)) }

// ChatRoom validates a caller-chosen chat room id and namespaces it.
func ChatRoom(id string) (RoomName, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrRoomEmpty
	}
	if len(id) > MaxRoomIDLen {
		return "", ErrRoomTooLong
	}
	return RoomName(chatPrefix + id), nil
}

func (n RoomName) IsPersonal() bool { return strings.HasPrefix(string(n), personalPrefix) }
func (n RoomName) IsChat() bool     { return strings.HasPrefix(string(n), chatPrefix) }

// ID strips the namespace, giving back the id clients use.
func (n RoomName) ID() string {
	s := string(n)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[i+1:]
	}
	return s
}

type Room struct {
	Name RoomName
}
