package signal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/edinsky/relay/internal/core"
	"github.com/edinsky/relay/internal/domain"
)

// descriptionPayload is an SDP addressed to one user. On relay the id
// field is rewritten from target to sender so the receiver knows who to
// answer.
type descriptionPayload struct {
	ID domain.UserID `json:"id"`
	webrtc.SessionDescription
}

type candidatePayload struct {
	ID domain.UserID `json:"id"`
	webrtc.ICECandidateInit
}

func (ctl *Controller) rtcDescription(_ context.Context, conn *WsConn, args json.RawMessage) (interface{}, error) {
	user := conn.User()
	if user == nil {
		return nil, core.ErrNotAuthorized()
	}
	var p descriptionPayload
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}

	target, ok := ctl.Registry.Lookup(p.ID)
	if !ok {
		return nil, core.ErrNoSuchUser()
	}
	p.ID = user.ID
	ctl.Notify.SendToOne(target, "RtcDescription", p)
	return nil, nil
}

func (ctl *Controller) rtcCandidate(_ context.Context, conn *WsConn, args json.RawMessage) (interface{}, error) {
	user := conn.User()
	if user == nil {
		return nil, core.ErrNotAuthorized()
	}
	var p candidatePayload
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}

	target, ok := ctl.Registry.Lookup(p.ID)
	if !ok {
		return nil, core.ErrNoSuchUser()
	}
	p.ID = user.ID
	ctl.Notify.SendToOne(target, "RtcCandidate", p)
	return nil, nil
}
