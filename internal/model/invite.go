package model

import "time"

// Invite is a portal invitation issued to a contact.
// Only the bcrypt hash of the token is stored.
type Invite struct {
	ID         int64
	ContactID  int64
	TokenHash  string
	CreatedAt  time.Time
	AcceptedAt *time.Time // nil until the token is verified
}

// Accepted reports whether the invite has been redeemed.
func (i *Invite) Accepted() bool {
	return i.AcceptedAt != nil
}
