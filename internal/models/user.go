package models

import (
	"strings"
	"time"
)

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

// User is the identity record shared between the auth backend and the
// session store. IsAdmin is a derived cache and is recomputed whenever a
// record is loaded or returned by the backend.
type User struct {
	ID      string   `json:"id"`
	Email   string   `json:"email"`
	Name    string   `json:"name"`
	Role    UserRole `json:"role"`
	IsAdmin bool     `json:"isAdmin"`
}

// DeriveAdmin recomputes IsAdmin from the role and the reserved admin email.
// Any previously stored flag is discarded.
func (u User) DeriveAdmin(adminEmail string) User {
	u.IsAdmin = u.Role == UserRoleAdmin ||
		(adminEmail != "" && strings.EqualFold(strings.TrimSpace(u.Email), adminEmail))
	return u
}

// Account is the backend's persisted view of a user.
type Account struct {
	ID           string
	Email        string
	PasswordHash []byte
	Name         string
	Role         UserRole
	Status       UserStatus
	GoogleID     *string
	PictureURL   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a Account) User() User {
	return User{
		ID:    a.ID,
		Email: a.Email,
		Name:  a.Name,
		Role:  a.Role,
	}
}
