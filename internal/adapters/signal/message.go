package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edinsky/relay/internal/core"
	"github.com/edinsky/relay/internal/domain"
	"github.com/edinsky/relay/internal/storage"
)

func (ctl *Controller) sendChatMessage(ctx context.Context, conn *WsConn, args json.RawMessage) (interface{}, error) {
	user := conn.User()
	if user == nil {
		return nil, core.ErrNotAuthorized()
	}
	var p struct {
		RoomID domain.RoomID `json:"roomID"`
		Body   string        `json:"body"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}

	msg, err := ctl.Messages.Create(ctx, p.RoomID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("draft message: %w", err)
	}
	msg.Body = p.Body
	msg.Time = time.Now().Format(domain.MessageTimeLayout)
	msg.Status = "sent"
	msg, err = ctl.Messages.Update(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}

	ctl.Notify.NotifyRoom(msg.RoomID, "postMessage", msg, conn)
	return msg, nil
}

func (ctl *Controller) updateMessage(ctx context.Context, conn *WsConn, args json.RawMessage) (interface{}, error) {
	var msg domain.Message
	if err := json.Unmarshal(args, &msg); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}
	updated, err := ctl.Messages.Update(ctx, &msg)
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	ctl.Notify.NotifyRoom(updated.RoomID, "updateMessage", updated, conn)
	return updated, nil
}

func (ctl *Controller) getRoomHistory(ctx context.Context, _ *WsConn, args json.RawMessage) (interface{}, error) {
	var q storage.MessageQuery
	if err := json.Unmarshal(args, &q); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}
	return ctl.Messages.Find(ctx, q)
}

func (ctl *Controller) getMessagesByIndex(ctx context.Context, _ *WsConn, args json.RawMessage) (interface{}, error) {
	var p struct {
		From   int           `json:"from"`
		To     int           `json:"to"`
		RoomID domain.RoomID `json:"roomID"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}
	return ctl.Messages.Range(ctx, p.From, p.To, p.RoomID)
}

func (ctl *Controller) getReadMessagesCount(ctx context.Context, conn *WsConn, args json.RawMessage) (interface{}, error) {
	var p struct {
		RoomID domain.RoomID `json:"roomID"`
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
	return ctl.Messages.ReadCount(ctx, p.RoomID, p.UserID)
}

// setReadMessagesCount stores the caller's read count and notifies the
// room only when the new count beats the previous max.
func (ctl *Controller) setReadMessagesCount(ctx context.Context, conn *WsConn, args json.RawMessage) (interface{}, error) {
	user := conn.User()
	if user == nil {
		return nil, core.ErrNotAuthorized()
	}
	var p struct {
		RoomID domain.RoomID `json:"roomID"`
		Count  int           `json:"count"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}

	prev, err := ctl.Messages.ReadCount(ctx, p.RoomID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	if err := ctl.Messages.SetReadCount(ctx, p.RoomID, user.ID, p.Count); err != nil {
		return nil, fmt.Errorf("set read count: %w", err)
	}
	if prev.MaxCount < p.Count {
		ctl.Notify.NotifyRoom(p.RoomID, "updateReadCount", struct {
			MaxCount int           `json:"maxCount"`
			RoomID   domain.RoomID `json:"roomID"`
		}{p.Count, p.RoomID}, conn)
	}
	return nil, nil
}
