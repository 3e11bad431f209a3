package core

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/society/internal/domain"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room  *domain.Room
	mu    sync.RWMutex
	bySID map[SessionID]MemberSession
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room:  room,
		bySID: make(map[SessionID]MemberSession),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) Has(sid SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bySID[sid]
	return ok
}

func (r *roomImpl) AddMember(sid SessionID, ms MemberSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySID[sid] = ms
	log.Debug().Str("module", "core.room").Str("room", string(r.room.Name)).Str("sid", string(sid)).Msg("member added")
}

func (r *roomImpl) RemoveMember(sid SessionID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySID, sid)
	log.Debug().Str("module", "core.room").Str("room", string(r.room.Name)).Str("sid", string(sid)).Msg("member removed")
	return len(r.bySID)
}

// Broadcast sends data to every member except from. An empty from reaches everyone.
func (r *roomImpl) Broadcast(from SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for sid, m := range r.bySID {
		if from != "" && sid == from {
			continue
		}
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.room.Name)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// MembersSnapshot lists each user once, even with several connections.
func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[domain.UserID]bool, len(r.bySID))
	out := make([]MemberDTO, 0, len(r.bySID))
	for _, ms := range r.bySID {
		u := ms.Meta().User
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		out = append(out, MemberDTO{ID: u.ID, Name: u.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
