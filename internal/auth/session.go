// Package auth holds the per-request session object and the credentials
// that produce it.
package auth

import "github.com/dkeye/society/internal/domain"

// Session is the explicit view of who is making a request. Components take
// it as a parameter instead of reaching into shared state.
type Session interface {
	User() *domain.User
	Authenticated() bool
	Can(domain.Capability) bool
}

type session struct {
	user *domain.User
}

// NewSession wraps a snapshot of u. A nil user yields an anonymous session.
func NewSession(u *domain.User) Session { return session{user: u} }

func Anonymous() Session { return session{} }

func (s session) User() *domain.User  { return s.user }
func (s session) Authenticated() bool { return s.user != nil }

func (s session) Can(c domain.Capability) bool {
	return domain.Capabilities(s.user).Has(c)
}
