package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrBodyEmpty = errors.New("body empty")

type AnnouncementID string

type Announcement struct {
	ID        AnnouncementID `json:"id" db:"id"`
	SocietyID SocietyID      `json:"societyId" db:"society_id"`
	AuthorID  UserID         `json:"authorId" db:"author_id"`
	Title     string         `json:"title" db:"title"`
	Body      string         `json:"body" db:"body"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
}

func NewAnnouncement(author *User, title, body string) (*Announcement, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, ErrBodyEmpty
	}
	return &Announcement{
		ID:        AnnouncementID(uuid.NewString()),
		SocietyID: author.SocietyID,
		AuthorID:  author.ID,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}, nil
}
