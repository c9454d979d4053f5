// Package app holds the relay's shared mutable state: session
// registry, room broadcast index, call sessions and the push engine.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/edinsky/relay/internal/core"
	"github.com/edinsky/relay/internal/domain"
	"github.com/edinsky/relay/internal/storage"
)

// CallEvent is the payload of joinCall/disconnectCall pushes.
type CallEvent struct {
	RoomID      domain.RoomID `json:"roomID"`
	Participant domain.UserID `json:"participant"`
}

// Sessions ties authorization and cleanup together: it feeds the
// registry from the room store on login and tears everything down on
// connection close.
type Sessions struct {
	Registry *Registry
	Calls    *CallManager
	Notify   *Notifier
	Rooms    storage.RoomStore
}

// Authorize fetches the user's memberships (ids only) and indexes the
// connection for each of them plus the identity map. A previous
// connection holding the same identity is closed.
func (s *Sessions) Authorize(ctx context.Context, conn core.SignalConnection, user *domain.User) error {
	rooms, err := s.Rooms.MembershipsForUser(ctx, user.ID, true)
	if err != nil {
		return fmt.Errorf("fetch memberships: %w", err)
	}
	ids := make([]domain.RoomID, 0, len(rooms))
	for _, room := range rooms {
		ids = append(ids, room.ID)
	}
	if evicted := s.Registry.Authorize(conn, user.ID, ids); evicted != nil {
		log.Warn().Str("module", "app.sessions").Str("user", string(user.ID)).Msg("evicted previous connection for identity")
		evicted.Close()
	}
	return nil
}

// Forget runs the close-triggered cleanup: an active call is terminated
// as if the user disconnected from it, then the connection leaves every
// broadcast set and the identity map. Best-effort, never fails.
// The call is torn down only while conn still holds the identity; the
// delayed close of an evicted connection must not touch call state the
// replacement connection built up in the meantime.
func (s *Sessions) Forget(user *domain.User, conn core.SignalConnection) {
	if cur, ok := s.Registry.Lookup(user.ID); ok && cur == conn {
		if roomID, err := s.Calls.Disconnect(user.ID); err == nil {
			s.Notify.NotifyRoom(roomID, "disconnectCall", CallEvent{RoomID: roomID, Participant: user.ID}, conn)
		}
	}
	s.Registry.Forget(user.ID, conn)
	log.Info().Str("module", "app.sessions").Str("user", string(user.ID)).Str("name", user.Name).Msg("deleted user session")
}

// StartRoom returns the onboarding room, creating it on first use.
func (s *Sessions) StartRoom(ctx context.Context) (*domain.Room, error) {
	room, err := s.Rooms.GetByTag(ctx, domain.StartRoomTag)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	room = &domain.Room{
		ID:   domain.RoomID(uuid.NewString()),
		Type: "group",
		Tag:  domain.StartRoomTag,
		Name: "New Users",
	}
	if err := s.Rooms.Create(ctx, room); err != nil {
		// Lost a creation race; the tag is unique, take the winner.
		if errors.Is(err, storage.ErrAlreadyExists) {
			return s.Rooms.GetByTag(ctx, domain.StartRoomTag)
		}
		return nil, err
	}
	log.Info().Str("module", "app.sessions").Str("room", string(room.ID)).Msg("created start room")
	return room, nil
}

// PlaceInStartRoom adds a freshly registered user to the onboarding
// room and grants its live connection the room's broadcasts.
func (s *Sessions) PlaceInStartRoom(ctx context.Context, userID domain.UserID) error {
	room, err := s.StartRoom(ctx)
	if err != nil {
		return err
	}
	if err := s.Rooms.AddMembership(ctx, room.ID, userID); err != nil {
		return err
	}
	if conn, ok := s.Registry.Lookup(userID); ok {
		s.Registry.Grant(conn, room.ID)
	}
	return nil
}
