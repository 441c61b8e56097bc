package model

import (
	"strings"
	"time"
)

// Account is an owner of API keys. Accounts are created by the registration
// flow; they have no password because API keys stand in for interactive
// login.
type Account struct {
	ID          int64      `json:"id" db:"id"`
	UserName    string     `json:"username" db:"username"`
	DisplayName string     `json:"display_name" db:"display_name"`
	FirstName   string     `json:"first_name" db:"first_name"`
	LastName    string     `json:"last_name" db:"last_name"`
	Email       string     `json:"email" db:"email"`
	LockedAt    *time.Time `json:"locked_at,omitempty" db:"locked_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Locked reports whether the account is locked out of authentication.
func (a *Account) Locked() bool {
	return a.LockedAt != nil
}

// ResolveDisplayName returns the first non-empty of the explicit display
// name, the username, or first and last name joined with a space.
func (a *Account) ResolveDisplayName() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	if a.UserName != "" {
		return a.UserName
	}
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}
