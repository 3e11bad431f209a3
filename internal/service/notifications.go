package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/society/internal/auth"
	"github.com/dkeye/society/internal/domain"
	"github.com/dkeye/society/internal/storage"
)

const DefaultListLimit = 50

// NotificationStore is the persistence Notifications needs;
// *storage.Notifications implements it.
type NotificationStore interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListForUser(ctx context.Context, user domain.UserID, filter domain.NotificationFilter, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id domain.NotificationID, user domain.UserID, at time.Time) error
	MarkAllRead(ctx context.Context, user domain.UserID, at time.Time) (int64, error)
	UnreadCount(ctx context.Context, user domain.UserID) (int, error)
}

type Notifications struct {
	store    NotificationStore
	users    *storage.Users
	notifier Notifier
	now      func() time.Time
}

func NewNotifications(store NotificationStore, users *storage.Users, notifier Notifier) *Notifications {
	return &Notifications{store: store, users: users, notifier: notifier, now: time.Now}
}

type SendInput struct {
	UserID  domain.UserID `json:"userId"`
	Title   string        `json:"title"`
	Message string        `json:"message"`
	Type    string        `json:"type"`
}

// Send stores a notification for a user of the caller's society and pushes
// it to the user's live sessions. Administrators only.
func (n *Notifications) Send(ctx context.Context, s auth.Session, in SendInput) (*domain.Notification, error) {
	if err := authorize(s, domain.CapAdmin); err != nil {
		return nil, err
	}
	target, err := n.users.ByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if target.SocietyID != s.User().SocietyID {
		return nil, storage.ErrNotFound
	}
	sev, err := domain.ParseSeverity(in.Type)
	if err != nil {
		return nil, err
	}
	note, err := domain.NewNotification(target.ID, target.SocietyID, in.Title, in.Message, sev)
	if err != nil {
		return nil, err
	}
	return note, n.deliver(ctx, note)
}

func (n *Notifications) deliver(ctx context.Context, note *domain.Notification) error {
	if err := n.store.Create(ctx, note); err != nil {
		return err
	}
	// Stored is delivered: a client that misses the push refetches.
	if err := n.notifier.NotifyUser(ctx, note); err != nil {
		log.Warn().Err(err).Str("module", "service.notifications").Str("user", string(note.UserID)).Msg("push failed")
	}
	return nil
}

type NotificationPage struct {
	Items  []domain.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

func (n *Notifications) List(ctx context.Context, s auth.Session, filter domain.NotificationFilter) (*NotificationPage, error) {
	if err := authorize(s, 0); err != nil {
		return nil, err
	}
	items, err := n.store.ListForUser(ctx, s.User().ID, filter, DefaultListLimit)
	if err != nil {
		return nil, err
	}
	unread, err := n.store.UnreadCount(ctx, s.User().ID)
	if err != nil {
		return nil, err
	}
	return &NotificationPage{Items: items, Unread: unread}, nil
}

func (n *Notifications) MarkRead(ctx context.Context, s auth.Session, id domain.NotificationID) error {
	if err := authorize(s, 0); err != nil {
		return err
	}
	err := n.store.MarkRead(ctx, id, s.User().ID, n.now())
	if errors.Is(err, storage.ErrNotFound) {
		log.Debug().Str("module", "service.notifications").Str("id", string(id)).Msg("mark read on missing notification")
	}
	return err
}

func (n *Notifications) MarkAllRead(ctx context.Context, s auth.Session) (int64, error) {
	if err := authorize(s, 0); err != nil {
		return 0, err
	}
	return n.store.MarkAllRead(ctx, s.User().ID, n.now())
}
