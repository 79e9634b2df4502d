package models

import "time"

type User struct {
	ID           string    `json:"_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstname"`
	LastName     string    `json:"lastname"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// UserUpdate carries the optional profile fields of an update.
// Nil fields are left untouched.
type UserUpdate struct {
	PasswordHash *string
	FirstName    *string
	LastName     *string
}
