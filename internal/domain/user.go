// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxLoginLen = 64

var (
	ErrLoginTooLong = errors.New("login too long")
	ErrLoginEmpty   = errors.New("login empty")
)

type UserID string

type User struct {
	ID    UserID `json:"id"`
	Name  string `json:"name"`
	Login string `json:"login"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in handlers.
// Name defaults to the login when empty.
func NewUser(login, name string) (*User, error) {
	if len(login) == 0 {
		return nil, ErrLoginEmpty
	}
	if len(login) > MaxLoginLen {
		return nil, ErrLoginTooLong
	}
	if name == "" {
		name = login
	}
	return &User{ID: UserID(uuid.NewString()), Name: name, Login: login}, nil
}
