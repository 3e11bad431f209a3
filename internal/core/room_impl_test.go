package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/society/internal/domain"
)

type fakeSignal struct {
	frames []Frame
	full   bool
}

func (f *fakeSignal) TrySend(fr Frame) error {
	if f.full {
		return errors.New("backpressure")
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeSignal) Close() {}

func member(id domain.UserID, sig SignalConnection) MemberSession {
	return NewMemberSession(domain.NewMember(&domain.User{ID: id, Name: string(id)}), sig)
}

func TestBroadcastSkipsSenderAndReportsDropped(t *testing.T) {
	room := NewRoomService(&domain.Room{Name: "chat:adega"})
	a, b, slow := &fakeSignal{}, &fakeSignal{}, &fakeSignal{full: true}
	room.AddMember("s-a", member("a", a))
	room.AddMember("s-b", member("b", b))
	room.AddMember("s-slow", member("c", slow))

	res := room.Broadcast("s-a", Frame("hi"))

	assert.Equal(t, 1, res.SendTo)
	assert.Equal(t, []SessionID{"s-slow"}, res.Dropped)
	assert.Empty(t, a.frames)
	require.Len(t, b.frames, 1)
	assert.Equal(t, "hi", string(b.frames[0]))
}

func TestBroadcastWithoutSenderReachesAll(t *testing.T) {
	room := NewRoomService(&domain.Room{Name: "user:a"})
	first, second := &fakeSignal{}, &fakeSignal{}
	room.AddMember("s1", member("a", first))
	room.AddMember("s2", member("a", second))

	res := room.Broadcast("", Frame("n"))
	assert.Equal(t, 2, res.SendTo)
}

func TestMembersSnapshotDeduplicatesUsers(t *testing.T) {
	room := NewRoomService(&domain.Room{Name: "chat:x"})
	room.AddMember("s1", member("a", &fakeSignal{}))
	room.AddMember("s2", member("a", &fakeSignal{}))
	room.AddMember("s3", member("b", &fakeSignal{}))

	snap := room.MembersSnapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, domain.UserID("a"), snap[0].ID)
	assert.Equal(t, 3, room.MemberCount())

	assert.Equal(t, 2, room.RemoveMember("s1"))
	assert.False(t, room.Has("s1"))
	assert.True(t, room.Has("s2"))
}
