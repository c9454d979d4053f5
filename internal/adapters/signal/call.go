package signal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/edinsky/relay/internal/app"
	"github.com/edinsky/relay/internal/core"
	"github.com/edinsky/relay/internal/domain"
)

func (ctl *Controller) joinCall(_ context.Context, conn *WsConn, args json.RawMessage) (interface{}, error) {
	user := conn.User()
	if user == nil {
		return nil, core.ErrNotAuthorized()
	}
	var p struct {
		RoomID domain.RoomID `json:"roomID"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}

	if prev, ok := ctl.Calls.RoomOf(user.ID); ok && prev != p.RoomID {
		ctl.Notify.NotifyRoom(prev, "disconnectCall", app.CallEvent{RoomID: prev, Participant: user.ID}, conn)
	}
	ctl.Calls.Join(user.ID, p.RoomID)
	ctl.Notify.NotifyRoom(p.RoomID, "joinCall", app.CallEvent{RoomID: p.RoomID, Participant: user.ID}, conn)
	return nil, nil
}

func (ctl *Controller) disconnectCall(_ context.Context, conn *WsConn, _ json.RawMessage) (interface{}, error) {
	user := conn.User()
	if user == nil {
		return nil, core.ErrNotAuthorized()
	}
	roomID, err := ctl.Calls.Disconnect(user.ID)
	if err != nil {
		return nil, err
	}
	ctl.Notify.NotifyRoom(roomID, "disconnectCall", app.CallEvent{RoomID: roomID, Participant: user.ID}, conn)
	return nil, nil
}

func (ctl *Controller) updateCallMedia(_ context.Context, conn *WsConn, args json.RawMessage) (interface{}, error) {
	user := conn.User()
	if user == nil {
		return nil, core.ErrNotAuthorized()
	}
	var p struct {
		Audio bool `json:"audio"`
		Video bool `json:"video"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}

	roomID, media, err := ctl.Calls.SetMedia(user.ID, p.Audio, p.Video)
	if err != nil {
		return nil, err
	}
	ctl.Notify.NotifyRoom(roomID, "updateCallMedia", struct {
		UserID domain.UserID `json:"userID"`
		RoomID domain.RoomID `json:"roomID"`
		Audio  bool          `json:"audio"`
		Video  bool          `json:"video"`
	}{user.ID, roomID, media.Audio, media.Video}, conn)
	return nil, nil
}

func (ctl *Controller) getCall(_ context.Context, _ *WsConn, args json.RawMessage) (interface{}, error) {
	var p struct {
		RoomID domain.RoomID `json:"roomID"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}
	snap := ctl.Calls.Snapshot(p.RoomID)
	if snap == nil {
		return nil, nil
	}
	return snap, nil
}
