package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxTitleLen   = 200
	MaxMessageLen = 4000
)

var (
	ErrTitleEmpty      = errors.New("title empty")
	ErrTitleTooLong    = errors.New("title too long")
	ErrMessageEmpty    = errors.New("message empty")
	ErrMessageTooLong  = errors.New("message too long")
	ErrUnknownSeverity = errors.New("unknown notification type")
)

type NotificationID string

// Severity is the category tag shown next to a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

func ParseSeverity(s string) (Severity, error) {
	switch v := Severity(s); v {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
		return v, nil
	case "":
		return SeverityInfo, nil
	}
	return "", ErrUnknownSeverity
}

type Notification struct {
	ID        NotificationID `json:"id" db:"id"`
	UserID    UserID         `json:"userId" db:"user_id"`
	SocietyID SocietyID      `json:"societyId" db:"society_id"`
	Title     string         `json:"title" db:"title"`
	Message   string         `json:"message" db:"message"`
	Type      Severity       `json:"type" db:"type"`
	Read      bool           `json:"read" db:"is_read"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
	ReadAt    *time.Time     `json:"readAt,omitempty" db:"read_at"`
}

func NewNotification(user UserID, society SocietyID, title, message string, sev Severity) (*Notification, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if strings.TrimSpace(message) == "" {
		return nil, ErrMessageEmpty
	}
	if len(message) > MaxMessageLen {
		return nil, ErrMessageTooLong
	}
	sev, err := ParseSeverity(string(sev))
	if err != nil {
		return nil, err
	}
	return &Notification{
		ID:        NotificationID(uuid.NewString()),
		UserID:    user,
		SocietyID: society,
		Title:     title,
		Message:   message,
		Type:      sev,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// MarkRead is idempotent: the first read time wins.
func (n *Notification) MarkRead(at time.Time) {
	if n.Read {
		return
	}
	n.Read = true
	n.ReadAt = &at
}

// NotificationFilter selects notifications by read state.
type NotificationFilter string

const (
	FilterAll    NotificationFilter = "all"
	FilterUnread NotificationFilter = "unread"
	FilterRead   NotificationFilter = "read"
)

// ParseNotificationFilter treats an empty value as FilterAll.
func ParseNotificationFilter(s string) (NotificationFilter, bool) {
	switch f := NotificationFilter(s); f {
	case FilterAll, FilterUnread, FilterRead:
		return f, true
	case "":
		return FilterAll, true
	}
	return "", false
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrTitleEmpty
	}
	if len(title) > MaxTitleLen {
		return ErrTitleTooLong
	}
	return nil
}
