package app

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/society/internal/core"
	"github.com/dkeye/society/internal/domain"
)

type sessionEntry struct {
	User    *domain.User
	Session core.MemberSession
	Rooms   map[domain.RoomName]struct{}
	Cancel  context.CancelFunc
}

// Registry tracks live sessions, the rooms each one joined, and the
// sessions of each user.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	byUser   map[domain.UserID]map[core.SessionID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		byUser:   make(map[domain.UserID]map[core.SessionID]struct{}),
	}
}

func (r *Registry) Bind(sid core.SessionID, user *domain.User, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{
		User:    user,
		Session: sess,
		Rooms:   make(map[domain.RoomName]struct{}),
		Cancel:  cancel,
	}
	set, ok := r.byUser[user.ID]
	if !ok {
		set = make(map[core.SessionID]struct{})
		r.byUser[user.ID] = set
	}
	set[sid] = struct{}{}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(user.ID)).Msg("bound session")
}

// Unbind forgets sid and returns the rooms it was in.
func (r *Registry) Unbind(sid core.SessionID) ([]domain.RoomName, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil, false
	}
	delete(r.sessions, sid)
	if set, ok := r.byUser[e.User.ID]; ok {
		delete(set, sid)
		if len(set) == 0 {
			delete(r.byUser, e.User.ID)
		}
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	return roomList(e.Rooms), true
}

func (r *Registry) GetSession(sid core.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

func (r *Registry) UserOf(sid core.SessionID) (*domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.User, true
	}
	return nil, false
}

// AddRoom records membership. It returns false if sid is unknown.
func (r *Registry) AddRoom(sid core.SessionID, room domain.RoomName) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.Rooms[room] = struct{}{}
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("added room")
	return true
}

// RemoveRoom drops membership. It returns false if sid was not in room.
func (r *Registry) RemoveRoom(sid core.SessionID, room domain.RoomName) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	if _, in := e.Rooms[room]; !in {
		return false
	}
	delete(e.Rooms, room)
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("removed room")
	return true
}

func (r *Registry) InRoom(sid core.SessionID, room domain.RoomName) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	_, in := e.Rooms[room]
	return in
}

func (r *Registry) RoomsOf(sid core.SessionID) []domain.RoomName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return roomList(e.Rooms)
	}
	return nil
}

func (r *Registry) SessionsOf(user domain.UserID) []core.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.SessionID, 0, len(r.byUser[user]))
	for sid := range r.byUser[user] {
		out = append(out, sid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Cancel stops the pumps of sid. The read pump then reports the disconnect.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}

func roomList(set map[domain.RoomName]struct{}) []domain.RoomName {
	out := make([]domain.RoomName, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
