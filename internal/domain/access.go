package domain

import "errors"

var (
	ErrUnknownFunction = errors.New("unknown function")
	ErrUnknownAccess   = errors.New("unknown access requirement")
)

// Function is the operational capability tag of a user.
type Function string

const (
	FunctionAdministrator Function = "administrador"
	FunctionTreasurer     Function = "tesoureiro"
	FunctionCellarman     Function = "sotolaria"
	FunctionNone          Function = "nenhuma"
)

// AllFunctions lists every member of the closed Function enumeration.
func AllFunctions() []Function {
	return []Function{FunctionAdministrator, FunctionTreasurer, FunctionCellarman, FunctionNone}
}

func ParseFunction(s string) (Function, error) {
	f := Function(s)
	if _, ok := capabilityTable[f]; !ok {
		return "", ErrUnknownFunction
	}
	return f, nil
}

// Capability is a bit set of derived permissions.
type Capability uint8

const (
	CapAdmin Capability = 1 << iota
	CapTreasurer
	CapCellarman
	CapPostAnnouncement

	capAll = CapAdmin | CapTreasurer | CapCellarman | CapPostAnnouncement
)

func (c Capability) Has(want Capability) bool { return want != 0 && c&want == want }

// capabilityTable is the only place a Function gains permissions. Every
// Function constant must have an entry; ParseFunction rejects anything else.
var capabilityTable = map[Function]Capability{
	FunctionAdministrator: capAll,
	FunctionTreasurer:     CapTreasurer | CapPostAnnouncement,
	FunctionCellarman:     CapCellarman | CapPostAnnouncement,
	FunctionNone:          0,
}

// Capabilities returns the capability set of u. A nil user has none.
func Capabilities(u *User) Capability {
	if u == nil {
		return 0
	}
	return capabilityTable[u.Function]
}

func HasAdminAccess(u *User) bool      { return Capabilities(u).Has(CapAdmin) }
func HasTreasurerAccess(u *User) bool  { return Capabilities(u).Has(CapTreasurer) }
func HasCellarmanAccess(u *User) bool  { return Capabilities(u).Has(CapCellarman) }
func CanPostAnnouncement(u *User) bool { return Capabilities(u).Has(CapPostAnnouncement) }

// Access is a route requirement tag.
type Access string

const (
	AccessNone      Access = ""
	AccessAdmin     Access = "admin"
	AccessTreasurer Access = "treasurer"
	AccessCellarman Access = "cellarman"
)

func ParseAccess(s string) (Access, error) {
	switch a := Access(s); a {
	case AccessNone, AccessAdmin, AccessTreasurer, AccessCellarman:
		return a, nil
	}
	return "", ErrUnknownAccess
}

// Capability maps the requirement to the capability it needs; zero for AccessNone.
func (a Access) Capability() Capability {
	switch a {
	case AccessAdmin:
		return CapAdmin
	case AccessTreasurer:
		return CapTreasurer
	case AccessCellarman:
		return CapCellarman
	}
	return 0
}
