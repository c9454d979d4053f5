package signal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/edinsky/relay/internal/core"
	"github.com/edinsky/relay/internal/domain"
)

func (ctl *Controller) getUserRooms(ctx context.Context, conn *WsConn, args json.RawMessage) (interface{}, error) {
	var p struct {
		UserID domain.UserID `json:"userID"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}
	if p.UserID == "" {
		user := conn.User()
		if user == nil {
			return nil, core.ErrNotAuthorized()
		}
		p.UserID = user.ID
	}
	return ctl.Rooms.MembershipsForUser(ctx, p.UserID, false)
}

func (ctl *Controller) getRoomUsers(ctx context.Context, _ *WsConn, args json.RawMessage) (interface{}, error) {
	var p struct {
		RoomID domain.RoomID `json:"roomID"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}
	return ctl.Rooms.Members(ctx, p.RoomID)
}

// createRoom creates a room and auto-joins the creator, granting its
// connection the room's broadcasts right away.
func (ctl *Controller) createRoom(ctx context.Context, conn *WsConn, args json.RawMessage) (interface{}, error) {
	user := conn.User()
	if user == nil {
		return nil, core.ErrNotAuthorized()
	}
	var p struct {
		Type string `json:"type"`
		Tag  string `json:"tag"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}
	if p.Type == "" {
		p.Type = "group"
	}

	room := &domain.Room{
		ID:   domain.RoomID(uuid.NewString()),
		Type: p.Type,
		Tag:  p.Tag,
		Name: p.Name,
	}
	if err := ctl.Rooms.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	if err := ctl.Rooms.AddMembership(ctx, room.ID, user.ID); err != nil {
		return nil, fmt.Errorf("join creator: %w", err)
	}
	ctl.Registry.Grant(conn, room.ID)
	log.Info().Str("module", "signal").Str("room", string(room.ID)).Str("user", string(user.ID)).Msg("created room")
	return room, nil
}

// addUserToRoom persists the membership, tells the room, and hands the
// added user the room and its broadcasts if they are connected.
func (ctl *Controller) addUserToRoom(ctx context.Context, _ *WsConn, args json.RawMessage) (interface{}, error) {
	var p struct {
		RoomID domain.RoomID `json:"roomID"`
		UserID domain.UserID `json:"userID"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}
	if err := ctl.Rooms.AddMembership(ctx, p.RoomID, p.UserID); err != nil {
		return nil, fmt.Errorf("add membership: %w", err)
	}

	target, connected := ctl.Registry.Lookup(p.UserID)
	var except core.SignalConnection
	if connected {
		except = target
	}
	ctl.Notify.NotifyRoom(p.RoomID, "addUserToRoom", p, except)

	if connected {
		ctl.Registry.Grant(target, p.RoomID)
		room, err := ctl.Rooms.GetByID(ctx, p.RoomID)
		if err != nil {
			return nil, fmt.Errorf("load room: %w", err)
		}
		ctl.Notify.SendToOne(target, "addRoom", room)
	}
	return nil, nil
}
