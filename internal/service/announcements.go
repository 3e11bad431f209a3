package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/society/internal/auth"
	"github.com/dkeye/society/internal/domain"
	"github.com/dkeye/society/internal/storage"
)

type Announcements struct {
	store         *storage.Announcements
	users         *storage.Users
	notifications *Notifications
}

func NewAnnouncements(store *storage.Announcements, users *storage.Users, notifications *Notifications) *Announcements {
	return &Announcements{store: store, users: users, notifications: notifications}
}

type PostInput struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Post publishes an announcement and tells every other member of the
// society about it.
func (a *Announcements) Post(ctx context.Context, s auth.Session, in PostInput) (*domain.Announcement, error) {
	if err := authorize(s, domain.CapPostAnnouncement); err != nil {
		return nil, err
	}
	author := s.User()
	ann, err := domain.NewAnnouncement(author, in.Title, in.Body)
	if err != nil {
		return nil, err
	}
	if err := a.store.Create(ctx, ann); err != nil {
		return nil, err
	}

	members, err := a.users.ListBySociety(ctx, author.SocietyID)
	if err != nil {
		return nil, err
	}
	// The announcement is already stored; a member we fail to notify still
	// sees it in the list.
	sent, failed := 0, 0
	for _, m := range members {
		if m.ID == author.ID {
			continue
		}
		note, err := domain.NewNotification(m.ID, m.SocietyID, ann.Title, fmt.Sprintf("Novo aviso de %s", author.Name), domain.SeverityInfo)
		if err == nil {
			err = a.notifications.deliver(ctx, note)
		}
		if err != nil {
			failed++
			log.Error().Err(err).Str("module", "service.announcements").Str("id", string(ann.ID)).Str("user", string(m.ID)).Msg("failed to notify member")
			continue
		}
		sent++
	}
	log.Info().Str("module", "service.announcements").Str("id", string(ann.ID)).Int("notified", sent).Int("failed", failed).Msg("announcement posted")
	return ann, nil
}

func (a *Announcements) List(ctx context.Context, s auth.Session) ([]domain.Announcement, error) {
	if err := authorize(s, 0); err != nil {
		return nil, err
	}
	return a.store.ListBySociety(ctx, s.User().SocietyID, DefaultListLimit)
}
