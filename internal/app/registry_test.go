package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/society/internal/core"
	"github.com/dkeye/society/internal/domain"
)

func TestRegistryTracksRoomsAndUsers(t *testing.T) {
	reg := NewRegistry()
	alice := &domain.User{ID: "alice"}
	canceled := 0

	reg.Bind("s1", alice, nil, func() { canceled++ })
	reg.Bind("s2", alice, nil, nil)
	reg.Bind("s3", &domain.User{ID: "bob"}, nil, nil)

	assert.Equal(t, 3, reg.Count())
	assert.Equal(t, []core.SessionID{"s1", "s2"}, reg.SessionsOf("alice"))

	require.True(t, reg.AddRoom("s1", "chat:adega"))
	require.True(t, reg.AddRoom("s1", "user:alice"))
	assert.False(t, reg.AddRoom("missing", "chat:adega"))
	assert.True(t, reg.InRoom("s1", "chat:adega"))
	assert.Equal(t, []domain.RoomName{"chat:adega", "user:alice"}, reg.RoomsOf("s1"))

	assert.True(t, reg.RemoveRoom("s1", "chat:adega"))
	assert.False(t, reg.RemoveRoom("s1", "chat:adega"))

	assert.True(t, reg.Cancel("s1"))
	assert.Equal(t, 1, canceled)
	assert.True(t, reg.Cancel("s2"))

	rooms, ok := reg.Unbind("s1")
	require.True(t, ok)
	assert.Equal(t, []domain.RoomName{"user:alice"}, rooms)
	_, ok = reg.Unbind("s1")
	assert.False(t, ok)

	assert.Equal(t, []core.SessionID{"s2"}, reg.SessionsOf("alice"))
	reg.Unbind("s2")
	assert.Empty(t, reg.SessionsOf("alice"))
}
