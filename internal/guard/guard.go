// Package guard decides whether a protected resource may be shown to a session.
package guard

import (
	"github.com/dkeye/society/internal/auth"
	"github.com/dkeye/society/internal/domain"
)

// AccessDeniedNotice is shown to authenticated users that lack the required capability.
const AccessDeniedNotice = "Acesso negado: não tem permissão para aceder a esta página."

type Decision int

const (
	// RenderNothing means the session is not authenticated. The caller is
	// expected to have sent the user elsewhere already.
	RenderNothing Decision = iota
	Denied
	Allow
)

func (d Decision) String() string {
	switch d {
	case RenderNothing:
		return "render_nothing"
	case Denied:
		return "denied"
	case Allow:
		return "allow"
	}
	return "unknown"
}

// Decide is evaluated on every request; nothing is cached because the
// session may change between calls.
func Decide(required domain.Access, s auth.Session) Decision {
	if s == nil || !s.Authenticated() {
		return RenderNothing
	}
	if required == domain.AccessNone {
		return Allow
	}
	if !s.Can(required.Capability()) {
		return Denied
	}
	return Allow
}
