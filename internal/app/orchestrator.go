package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/society/internal/broker"
	"github.com/dkeye/society/internal/core"
	"github.com/dkeye/society/internal/domain"
	"github.com/dkeye/society/internal/protocol"
)

const MaxChatTextLen = 2000

// Orchestrator owns room membership of live sessions and routes deliveries
// through the broker so every instance reaches its own members.
type Orchestrator struct {
	Registry *Registry
	Rooms    core.RoomManager
	Policy   Policy
	Broker   broker.Broker
	Limiter  *RoomRateLimiter
}

func NewOrchestrator(b broker.Broker, limiter *RoomRateLimiter) *Orchestrator {
	return &Orchestrator{
		Registry: NewRegistry(),
		Rooms:    NewRoomManager(),
		Policy:   SimplePolicy{},
		Broker:   b,
		Limiter:  limiter,
	}
}

// Run subscribes to the broker. Deliveries arrive on broker goroutines.
func (o *Orchestrator) Run(ctx context.Context) error {
	return o.Broker.Subscribe(ctx, o.Deliver)
}

func (o *Orchestrator) Connect(sid core.SessionID, user *domain.User, sig core.SignalConnection, cancel context.CancelFunc) core.MemberSession {
	sess := core.NewMemberSession(domain.NewMember(user), sig)
	o.Registry.Bind(sid, user, sess, cancel)
	return sess
}

// JoinPersonal puts sid in the notification room of its own user. Asking
// for another user's room is refused.
func (o *Orchestrator) JoinPersonal(sid core.SessionID, id domain.UserID) (domain.RoomName, error) {
	user, ok := o.Registry.UserOf(sid)
	if !ok {
		return "", ErrUnknownSession
	}
	if id != user.ID {
		log.Warn().Str("module", "app.orchestrator").Str("sid", string(sid)).Str("user", string(user.ID)).Str("asked", string(id)).Msg("foreign personal room refused")
		return "", ErrForeignRoom
	}
	room := domain.PersonalRoom(id)
	return room, o.join(sid, room)
}

func (o *Orchestrator) JoinChat(sid core.SessionID, roomID string) (domain.RoomName, error) {
	user, ok := o.Registry.UserOf(sid)
	if !ok {
		return "", ErrUnknownSession
	}
	room, err := domain.ChatRoom(roomID)
	if err != nil {
		return "", err
	}
	if o.Registry.InRoom(sid, room) {
		return room, nil
	}
	if o.Limiter != nil && !o.Limiter.Allow(user.ID) {
		return "", ErrRateLimited
	}
	return room, o.join(sid, room)
}

func (o *Orchestrator) join(sid core.SessionID, room domain.RoomName) error {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return ErrUnknownSession
	}
	if !o.Registry.AddRoom(sid, room) {
		return ErrUnknownSession
	}
	o.Rooms.Join(room, sid, sess)
	// A disconnect that ran after AddRoom has already swept the session's
	// rooms and would miss this membership.
	if !o.Registry.InRoom(sid, room) {
		o.Rooms.Leave(room, sid)
		return ErrUnknownSession
	}
	log.Info().Str("module", "app.orchestrator").Str("sid", string(sid)).Str("room", string(room)).Msg("joined room")
	return nil
}

func (o *Orchestrator) LeaveChat(sid core.SessionID, roomID string) (domain.RoomName, error) {
	room, err := domain.ChatRoom(roomID)
	if err != nil {
		return "", err
	}
	if !o.Registry.RemoveRoom(sid, room) {
		return "", ErrNotInRoom
	}
	o.leaveRoom(sid, room)
	log.Info().Str("module", "app.orchestrator").Str("sid", string(sid)).Str("room", string(room)).Msg("left room")
	return room, nil
}

func (o *Orchestrator) leaveRoom(sid core.SessionID, room domain.RoomName) {
	o.Rooms.Leave(room, sid)
}

// SendChat broadcasts text to the other members of a chat room the sender is in.
func (o *Orchestrator) SendChat(ctx context.Context, sid core.SessionID, roomID, text string) error {
	user, ok := o.Registry.UserOf(sid)
	if !ok {
		return ErrUnknownSession
	}
	room, err := domain.ChatRoom(roomID)
	if err != nil {
		return err
	}
	if !o.Registry.InRoom(sid, room) {
		return ErrNotInRoom
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	text = truncate(text, MaxChatTextLen)
	msg := protocol.ChatMessage{
		Type: protocol.TypeChatMessage,
		Room: room.ID(),
		From: protocol.Sender{ID: user.ID, Name: user.Name},
		Text: text,
		At:   time.Now().UTC(),
	}
	return o.Publish(ctx, room, sid, msg)
}

// NotifyUser pushes a notification to every live session of its owner.
func (o *Orchestrator) NotifyUser(ctx context.Context, n *domain.Notification) error {
	return o.Publish(ctx, domain.PersonalRoom(n.UserID), "", protocol.NewNotification(n))
}

func (o *Orchestrator) Publish(ctx context.Context, room domain.RoomName, exclude core.SessionID, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	return o.Broker.Publish(ctx, broker.Envelope{
		Room:    string(room),
		Exclude: string(exclude),
		Payload: payload,
	})
}

// Deliver hands an envelope to the local members of its room.
func (o *Orchestrator) Deliver(env broker.Envelope) {
	name := domain.RoomName(env.Room)
	room, ok := o.Rooms.Get(name)
	if !ok {
		return
	}
	res := room.Broadcast(core.SessionID(env.Exclude), core.Frame(env.Payload))
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case KickMember:
			log.Warn().Str("module", "app.orchestrator").Str("sid", string(slow)).Str("room", env.Room).Msg("kicking slow session")
			o.Kick(slow)
		case MarkSlow, DropFrame, NoAction:
		}
	}
}

// Kick cancels the session's pumps and drops it from every room.
func (o *Orchestrator) Kick(sid core.SessionID) {
	o.Registry.Cancel(sid)
	o.OnDisconnect(sid)
}

// DisconnectUser kicks every live session of a user, as on logout.
func (o *Orchestrator) DisconnectUser(id domain.UserID) int {
	sids := o.Registry.SessionsOf(id)
	for _, sid := range sids {
		o.Kick(sid)
	}
	if len(sids) > 0 {
		log.Info().Str("module", "app.orchestrator").Str("user", string(id)).Int("sessions", len(sids)).Msg("disconnected user")
	}
	return len(sids)
}

// OnDisconnect is idempotent; both the read pump and Kick may call it.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	rooms, ok := o.Registry.Unbind(sid)
	if !ok {
		return
	}
	for _, room := range rooms {
		o.leaveRoom(sid, room)
	}
	log.Info().Str("module", "app.orchestrator").Str("sid", string(sid)).Int("rooms", len(rooms)).Msg("session disconnected")
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
