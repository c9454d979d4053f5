// Package storage declares the durable stores the relay core depends
// on. The core never owns users, rooms or messages; it only reads them
// and occasionally triggers creation.
package storage

import (
	"context"
	"errors"

	"github.com/edinsky/relay/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

type UserStore interface {
	ValidateCredentials(ctx context.Context, login, password string) (bool, error)
	GetByLogin(ctx context.Context, login string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User, password string) error
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	Find(ctx context.Context, query string) ([]domain.User, error)
}

type RoomStore interface {
	// MembershipsForUser returns the rooms the user belongs to. With
	// minimal set only the room ids are populated.
	MembershipsForUser(ctx context.Context, userID domain.UserID, minimal bool) ([]domain.Room, error)
	GetByTag(ctx context.Context, tag string) (*domain.Room, error)
	Create(ctx context.Context, room *domain.Room) error
	AddMembership(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	Members(ctx context.Context, roomID domain.RoomID) ([]domain.User, error)
	GetByID(ctx context.Context, id domain.RoomID) (*domain.Room, error)
}

// MessageQuery filters Find. A zero Limit means no limit.
type MessageQuery struct {
	RoomID domain.RoomID `json:"roomID"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

type MessageStore interface {
	// Create inserts a draft message owned by userID in roomID and
	// returns it with its identity assigned.
	Create(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (*domain.Message, error)
	Update(ctx context.Context, msg *domain.Message) (*domain.Message, error)
	Find(ctx context.Context, q MessageQuery) ([]domain.Message, error)
	Range(ctx context.Context, from, to int, roomID domain.RoomID) ([]domain.Message, error)
	ReadCount(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (domain.ReadCount, error)
	SetReadCount(ctx context.Context, roomID domain.RoomID, userID domain.UserID, count int) error
}
