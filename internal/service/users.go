package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/society/internal/auth"
	"github.com/dkeye/society/internal/domain"
	"github.com/dkeye/society/internal/storage"
)

type Users struct {
	store *storage.Users
}

func NewUsers(store *storage.Users) *Users { return &Users{store: store} }

// Profile is the signed-in user plus the capabilities derived from their
// function, so clients never recompute them.
type Profile struct {
	*domain.User
	Capabilities Capabilities `json:"capabilities"`
}

type Capabilities struct {
	Admin            bool `json:"admin"`
	Treasurer        bool `json:"treasurer"`
	Cellarman        bool `json:"cellarman"`
	PostAnnouncement bool `json:"postAnnouncement"`
}

func (u *Users) Me(s auth.Session) (*Profile, error) {
	if err := authorize(s, 0); err != nil {
		return nil, err
	}
	me := s.User()
	return &Profile{
		User: me,
		Capabilities: Capabilities{
			Admin:            domain.HasAdminAccess(me),
			Treasurer:        domain.HasTreasurerAccess(me),
			Cellarman:        domain.HasCellarmanAccess(me),
			PostAnnouncement: domain.CanPostAnnouncement(me),
		},
	}, nil
}

func (u *Users) List(ctx context.Context, s auth.Session) ([]domain.User, error) {
	if err := authorize(s, domain.CapAdmin); err != nil {
		return nil, err
	}
	return u.store.ListBySociety(ctx, s.User().SocietyID)
}

type CreateInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Function string `json:"function"`
	Phone    string `json:"phone"`
}

func (u *Users) Create(ctx context.Context, s auth.Session, in CreateInput) (*domain.User, error) {
	if err := authorize(s, domain.CapAdmin); err != nil {
		return nil, err
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	fn, err := domain.ParseFunction(in.Function)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < MinPasswordLen {
		return nil, ErrPasswordTooShort
	}
	user, err := domain.NewUser(s.User().SocietyID, in.Name, in.Email, role, fn)
	if err != nil {
		return nil, err
	}
	user.Phone = in.Phone
	if user.PasswordHash, err = auth.HashPassword(in.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := u.store.Create(ctx, user); err != nil {
		return nil, err
	}
	log.Info().Str("module", "service.users").Str("user", string(user.ID)).Str("by", string(s.User().ID)).Msg("user created")
	return user, nil
}

// SetFunction changes the function of a user in the caller's society.
func (u *Users) SetFunction(ctx context.Context, s auth.Session, id domain.UserID, function string) (*domain.User, error) {
	if err := authorize(s, domain.CapAdmin); err != nil {
		return nil, err
	}
	fn, err := domain.ParseFunction(function)
	if err != nil {
		return nil, err
	}
	target, err := u.store.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if target.SocietyID != s.User().SocietyID {
		return nil, storage.ErrNotFound
	}
	if err := u.store.UpdateFunction(ctx, id, fn); err != nil {
		return nil, err
	}
	target.Function = fn
	log.Info().Str("module", "service.users").Str("user", string(id)).Str("function", string(fn)).Msg("function changed")
	return target, nil
}

// DirectoryEntry is what the treasurer sees of a member.
type DirectoryEntry struct {
	ID       domain.UserID `json:"id"`
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Phone    string        `json:"phone,omitempty"`
	Role     domain.Role   `json:"role"`
	MemberID *string       `json:"memberId,omitempty"`
}

func (u *Users) Directory(ctx context.Context, s auth.Session) ([]DirectoryEntry, error) {
	if err := authorize(s, domain.CapTreasurer); err != nil {
		return nil, err
	}
	users, err := u.store.ListBySociety(ctx, s.User().SocietyID)
	if err != nil {
		return nil, err
	}
	out := make([]DirectoryEntry, 0, len(users))
	for _, m := range users {
		out = append(out, DirectoryEntry{
			ID:       m.ID,
			Name:     m.Name,
			Email:    m.Email,
			Phone:    m.Phone,
			Role:     m.Role,
			MemberID: m.MemberID,
		})
	}
	return out, nil
}
