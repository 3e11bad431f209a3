package app

import (
	"sort"
	"sync"

	"github.com/dkeye/society/internal/core"
	"github.com/dkeye/society/internal/domain"
)

type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomName]core.RoomService
}

func NewRoomManager() core.RoomManager {
	return &RoomManagerImpl{rooms: make(map[domain.RoomName]core.RoomService)}
}

// Join holds the manager lock so a concurrent Leave cannot drop the room
// between its creation and the new member landing in it.
func (f *RoomManagerImpl) Join(name domain.RoomName, sid core.SessionID, ms core.MemberSession) core.RoomService {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[name]
	if !ok {
		room = core.NewRoomService(&domain.Room{Name: name})
		f.rooms[name] = room
	}
	room.AddMember(sid, ms)
	return room
}

// Leave removes sid and deletes the room once it is empty.
func (f *RoomManagerImpl) Leave(name domain.RoomName, sid core.SessionID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[name]
	if !ok {
		return 0
	}
	remaining := room.RemoveMember(sid)
	if remaining == 0 {
		delete(f.rooms, name)
	}
	return remaining
}

func (f *RoomManagerImpl) Get(name domain.RoomName) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[name]
	return room, ok
}

// List reports chat rooms only; personal rooms are private.
func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for name, r := range f.rooms {
		if !name.IsChat() {
			continue
		}
		out = append(out, core.RoomInfo{ID: name.ID(), MemberCount: r.MemberCount()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
