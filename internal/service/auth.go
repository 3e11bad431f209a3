package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/society/internal/auth"
	"github.com/dkeye/society/internal/domain"
	"github.com/dkeye/society/internal/storage"
)

type Auth struct {
	users    *storage.Users
	tokens   *auth.Tokens
	notifier Notifier
}

func NewAuth(users *storage.Users, tokens *auth.Tokens, notifier Notifier) *Auth {
	return &Auth{users: users, tokens: tokens, notifier: notifier}
}

// Login checks credentials and issues a token. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (a *Auth) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	u, err := a.users.ByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil, auth.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		log.Info().Str("module", "service.auth").Str("user", string(u.ID)).Msg("rejected login")
		return "", nil, err
	}
	token, err := a.tokens.Issue(u.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}
	log.Info().Str("module", "service.auth").Str("user", string(u.ID)).Msg("login")
	return token, u, nil
}

// Authenticate resolves a token to a fresh copy of its user, so function
// changes apply on the next request.
func (a *Auth) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	id, err := a.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	u, err := a.users.ByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, auth.ErrTokenInvalid
	}
	return u, err
}

// Logout tears down the realtime sessions of the caller.
func (a *Auth) Logout(s auth.Session) (int, error) {
	if err := authorize(s, 0); err != nil {
		return 0, err
	}
	return a.notifier.DisconnectUser(s.User().ID), nil
}

// EnsureAdmin creates an administrator when no user holds the email yet.
func (a *Auth) EnsureAdmin(ctx context.Context, society domain.SocietyID, name, email, password string) (*domain.User, error) {
	u, err := a.users.ByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	u, err = domain.NewUser(society, name, email, domain.RoleRegular, domain.FunctionAdministrator)
	if err != nil {
		return nil, err
	}
	if u.PasswordHash, err = auth.HashPassword(password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := a.users.Create(ctx, u); err != nil {
		return nil, err
	}
	log.Info().Str("module", "service.auth").Str("user", string(u.ID)).Msg("created administrator")
	return u, nil
}
