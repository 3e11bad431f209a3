package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/society/internal/broker"
	"github.com/dkeye/society/internal/core"
	"github.com/dkeye/society/internal/domain"
	"github.com/dkeye/society/internal/protocol"
)

type fakeSignal struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
}

func (f *fakeSignal) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return errors.New("backpressure")
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeSignal) Close() {}

func (f *fakeSignal) types(t *testing.T) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.frames))
	for _, fr := range f.frames {
		typ, err := protocol.TypeOf(fr)
		require.NoError(t, err)
		out = append(out, typ)
	}
	return out
}

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(broker.NewLocal(), NewRoomRateLimiter(10, time.Minute))
	require.NoError(t, o.Run(context.Background()))
	return o
}

func TestJoinPersonalRejectsForeignUser(t *testing.T) {
	o := newTestOrchestrator(t)
	o.Connect("s1", &domain.User{ID: "alice"}, &fakeSignal{}, nil)

	_, err := o.JoinPersonal("s1", "bob")
	assert.ErrorIs(t, err, ErrForeignRoom)

	room, err := o.JoinPersonal("s1", "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.PersonalRoom("alice"), room)

	_, err = o.JoinPersonal("ghost", "alice")
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestNotifyUserReachesEverySessionOfOwner(t *testing.T) {
	o := newTestOrchestrator(t)
	phone, laptop, other := &fakeSignal{}, &fakeSignal{}, &fakeSignal{}
	o.Connect("s1", &domain.User{ID: "alice"}, phone, nil)
	o.Connect("s2", &domain.User{ID: "alice"}, laptop, nil)
	o.Connect("s3", &domain.User{ID: "bob"}, other, nil)
	for sid, id := range map[core.SessionID]domain.UserID{"s1": "alice", "s2": "alice", "s3": "bob"} {
		_, err := o.JoinPersonal(sid, id)
		require.NoError(t, err)
	}

	n, err := domain.NewNotification("alice", "soc", "Jantar", "Sexta às 21h", domain.SeverityInfo)
	require.NoError(t, err)
	require.NoError(t, o.NotifyUser(context.Background(), n))

	assert.Equal(t, []string{protocol.TypeNotification}, phone.types(t))
	assert.Equal(t, []string{protocol.TypeNotification}, laptop.types(t))
	assert.Empty(t, other.types(t))

	var got protocol.Notification
	require.NoError(t, json.Unmarshal(phone.frames[0], &got))
	assert.Equal(t, "Jantar", got.Notification.Title)
}

func TestChatReachesRoomMembersOnly(t *testing.T) {
	o := newTestOrchestrator(t)
	a, b, outsider := &fakeSignal{}, &fakeSignal{}, &fakeSignal{}
	o.Connect("s1", &domain.User{ID: "alice", Name: "Alice"}, a, nil)
	o.Connect("s2", &domain.User{ID: "bob"}, b, nil)
	o.Connect("s3", &domain.User{ID: "carol"}, outsider, nil)

	_, err := o.JoinChat("s1", "adega")
	require.NoError(t, err)
	_, err = o.JoinChat("s2", "adega")
	require.NoError(t, err)
	_, err = o.JoinChat("s3", "cozinha")
	require.NoError(t, err)

	require.NoError(t, o.SendChat(context.Background(), "s1", "adega", "  olá  "))

	assert.Empty(t, a.types(t))
	require.Equal(t, []string{protocol.TypeChatMessage}, b.types(t))
	assert.Empty(t, outsider.types(t))

	var msg protocol.ChatMessage
	require.NoError(t, json.Unmarshal(b.frames[0], &msg))
	assert.Equal(t, "adega", msg.Room)
	assert.Equal(t, "olá", msg.Text)
	assert.Equal(t, "Alice", msg.From.Name)

	assert.ErrorIs(t, o.SendChat(context.Background(), "s3", "adega", "hi"), ErrNotInRoom)
	assert.ErrorIs(t, o.SendChat(context.Background(), "s1", "adega", "   "), ErrEmptyMessage)
}

func TestChatRoomCannotReachPersonalRoom(t *testing.T) {
	o := newTestOrchestrator(t)
	victim, intruder := &fakeSignal{}, &fakeSignal{}
	o.Connect("s1", &domain.User{ID: "alice"}, victim, nil)
	o.Connect("s2", &domain.User{ID: "mallory"}, intruder, nil)
	_, err := o.JoinPersonal("s1", "alice")
	require.NoError(t, err)

	room, err := o.JoinChat("s2", "alice")
	require.NoError(t, err)
	assert.NotEqual(t, domain.PersonalRoom("alice"), room)
	require.NoError(t, o.SendChat(context.Background(), "s2", "alice", "boo"))
	assert.Empty(t, victim.types(t))
}

func TestLeaveChatStopsEmptyRoom(t *testing.T) {
	o := newTestOrchestrator(t)
	o.Connect("s1", &domain.User{ID: "alice"}, &fakeSignal{}, nil)
	_, err := o.JoinChat("s1", "adega")
	require.NoError(t, err)
	assert.Len(t, o.Rooms.List(), 1)

	_, err = o.LeaveChat("s1", "adega")
	require.NoError(t, err)
	assert.Empty(t, o.Rooms.List())

	_, err = o.LeaveChat("s1", "adega")
	assert.ErrorIs(t, err, ErrNotInRoom)
}

func TestJoinChatRateLimited(t *testing.T) {
	o := NewOrchestrator(broker.NewLocal(), NewRoomRateLimiter(2, time.Minute))
	o.Connect("s1", &domain.User{ID: "alice"}, &fakeSignal{}, nil)

	_, err := o.JoinChat("s1", "a")
	require.NoError(t, err)
	_, err = o.JoinChat("s1", "a")
	require.NoError(t, err, "rejoining a room is free")
	_, err = o.JoinChat("s1", "b")
	require.NoError(t, err)
	_, err = o.JoinChat("s1", "c")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestSlowSessionIsKicked(t *testing.T) {
	o := newTestOrchestrator(t)
	canceled := false
	slow := &fakeSignal{full: true}
	o.Connect("s1", &domain.User{ID: "alice"}, slow, func() { canceled = true })
	_, err := o.JoinPersonal("s1", "alice")
	require.NoError(t, err)

	n, err := domain.NewNotification("alice", "soc", "t", "m", domain.SeverityInfo)
	require.NoError(t, err)
	require.NoError(t, o.NotifyUser(context.Background(), n))

	assert.True(t, canceled)
	assert.Zero(t, o.Registry.Count())
	_, ok := o.Rooms.Get(domain.PersonalRoom("alice"))
	assert.False(t, ok)
}

func TestDisconnectUserClosesAllSessions(t *testing.T) {
	o := newTestOrchestrator(t)
	var canceled int
	cancel := func() { canceled++ }
	o.Connect("s1", &domain.User{ID: "alice"}, &fakeSignal{}, cancel)
	o.Connect("s2", &domain.User{ID: "alice"}, &fakeSignal{}, cancel)
	o.Connect("s3", &domain.User{ID: "bob"}, &fakeSignal{}, cancel)

	assert.Equal(t, 2, o.DisconnectUser("alice"))
	assert.Equal(t, 2, canceled)
	assert.Equal(t, 1, o.Registry.Count())
	assert.Zero(t, o.DisconnectUser("alice"))
}

func TestJoinRacingLastLeaveKeepsRoom(t *testing.T) {
	o := newTestOrchestrator(t)
	alice := &domain.User{ID: "alice"}
	room := domain.PersonalRoom("alice")

	for i := 0; i < 500; i++ {
		o.Connect("tab1", alice, &fakeSignal{}, nil)
		_, err := o.JoinPersonal("tab1", "alice")
		require.NoError(t, err)
		o.Connect("tab2", alice, &fakeSignal{}, nil)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			o.OnDisconnect("tab1")
		}()
		go func() {
			defer wg.Done()
			_, err := o.JoinPersonal("tab2", "alice")
			assert.NoError(t, err)
		}()
		wg.Wait()

		require.True(t, o.Registry.InRoom("tab2", room))
		r, ok := o.Rooms.Get(room)
		require.True(t, ok, "iteration %d", i)
		require.True(t, r.Has("tab2"), "iteration %d", i)

		o.OnDisconnect("tab2")
		_, ok = o.Rooms.Get(room)
		require.False(t, ok)
	}
}

// disconnectingRooms ends the session right before it lands in a room.
type disconnectingRooms struct {
	core.RoomManager
	o *Orchestrator
}

func (d *disconnectingRooms) Join(name domain.RoomName, sid core.SessionID, ms core.MemberSession) core.RoomService {
	d.o.OnDisconnect(sid)
	return d.RoomManager.Join(name, sid, ms)
}

func TestJoinRollsBackWhenSessionEndsMidway(t *testing.T) {
	o := newTestOrchestrator(t)
	o.Rooms = &disconnectingRooms{RoomManager: NewRoomManager(), o: o}
	o.Connect("s1", &domain.User{ID: "alice"}, &fakeSignal{}, nil)

	_, err := o.JoinPersonal("s1", "alice")
	assert.ErrorIs(t, err, ErrUnknownSession)

	_, ok := o.Rooms.Get(domain.PersonalRoom("alice"))
	assert.False(t, ok)
	assert.Zero(t, o.Registry.Count())
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))

	long := strings.Repeat("é", 1001)
	cut := truncate(long, MaxChatTextLen)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, strings.Repeat("é", 1000), cut)

	assert.Equal(t, "a", truncate("a€", 3))
}
