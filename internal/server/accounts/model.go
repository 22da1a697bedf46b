package accounts

import "time"

// Account is the persisted account record. PasswordHash is internal
// credential material; transport layers must never expose it.
//
// VerifiedEmail only ever transitions false → true.
type Account struct {
	ID            string
	Username      string
	Email         string
	PasswordHash  string
	VerifiedEmail bool
	CreatedAt     time.Time
}
