// Package service holds the use cases behind the HTTP API. Every call takes
// the caller's auth.Session explicitly.
package service

import (
	"context"
	"errors"

	"github.com/dkeye/society/internal/auth"
	"github.com/dkeye/society/internal/domain"
)

var (
	ErrUnauthenticated  = errors.New("not signed in")
	ErrForbidden        = errors.New("missing capability")
	ErrPasswordTooShort = errors.New("password too short")
)

const MinPasswordLen = 8

// Notifier delivers to live websocket sessions.
type Notifier interface {
	NotifyUser(ctx context.Context, n *domain.Notification) error
	DisconnectUser(id domain.UserID) int
}

func authorize(s auth.Session, c domain.Capability) error {
	if s == nil || !s.Authenticated() {
		return ErrUnauthenticated
	}
	if c != 0 && !s.Can(c) {
		return ErrForbidden
	}
	return nil
}
