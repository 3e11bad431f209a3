// Package domain contains the society entities and the pure rules over them.
package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxNameLen  = 120
	MaxEmailLen = 254
)

var (
	ErrNameEmpty    = errors.New("name empty")
	ErrNameTooLong  = errors.New("name too long")
	ErrEmailInvalid = errors.New("email invalid")
	ErrUnknownRole  = errors.New("unknown role")
)

type (
	UserID    string
	SocietyID string
)

// Role is the membership class of a user. It never grants capabilities;
// see Function for that.
type Role string

const (
	RoleRegular   Role = "socio"
	RoleAssociate Role = "associado"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleRegular, RoleAssociate:
		return r, nil
	}
	return "", ErrUnknownRole
}

type User struct {
	ID           UserID    `json:"id" db:"id"`
	SocietyID    SocietyID `json:"societyId" db:"society_id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	Function     Function  `json:"function" db:"user_function"`
	MemberID     *string   `json:"memberId,omitempty" db:"member_id"`
	Phone        string    `json:"phone,omitempty" db:"phone"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// NewUser validates the fields a caller controls and assigns a fresh id.
func NewUser(society SocietyID, name, email string, role Role, fn Function) (*User, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if len(email) > MaxEmailLen || !strings.Contains(email, "@") {
		return nil, ErrEmailInvalid
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}
	if _, err := ParseFunction(string(fn)); err != nil {
		return nil, err
	}
	return &User{
		ID:        UserID(uuid.NewString()),
		SocietyID: society,
		Name:      name,
		Email:     email,
		Role:      role,
		Function:  fn,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (u *User) SetName(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	u.Name = name
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrNameEmpty
	}
	if len(name) > MaxNameLen {
		return ErrNameTooLong
	}
	return nil
}
