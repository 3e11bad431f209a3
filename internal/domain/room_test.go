package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersonalAndChatRoomsNeverCollide(t *testing.T) {
	personal := PersonalRoom("abc")
	chat, err := ChatRoom("abc")
	require.NoError(t, err)

	assert.NotEqual(t, personal, chat)
	assert.True(t, personal.IsPersonal())
	assert.True(t, chat.IsChat())
	assert.Equal(t, "abc", personal.ID())
	assert.Equal(t, "abc", chat.ID())
}

func TestChatRoomValidation(t *testing.T) {
	_, err := ChatRoom("  ")
	assert.ErrorIs(t, err, ErrRoomEmpty)

	_, err = ChatRoom(strings.Repeat("r", MaxRoomIDLen+1))
	assert.ErrorIs(t, err, ErrRoomTooLong)
}

func TestNewUser(t *testing.T) {
	u, err := NewUser("s1", "Ana", " Ana@Example.org ", RoleRegular, FunctionCellarman)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.org", u.Email)
	assert.True(t, HasCellarmanAccess(u))

	_, err = NewUser("s1", "Ana", "ana", RoleRegular, FunctionNone)
	assert.ErrorIs(t, err, ErrEmailInvalid)

	_, err = NewUser("s1", "Ana", "a@b", "honorario", FunctionNone)
	assert.ErrorIs(t, err, ErrUnknownRole)

	_, err = NewUser("s1", "", "a@b", RoleAssociate, FunctionNone)
	assert.ErrorIs(t, err, ErrNameEmpty)
}
