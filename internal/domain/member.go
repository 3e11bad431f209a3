package domain

// Member represents a user's participation in the realtime hub.
// No transport or lifecycle logic here.
type Member struct {
	User *User
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user *User) *Member {
	return &Member{User: user}
}
