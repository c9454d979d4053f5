package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/edinsky/relay/internal/core"
)

type handlerFunc func(ctx context.Context, conn *WsConn, args json.RawMessage) (interface{}, error)

// declaredMethods is the full method surface of the protocol; the
// dispatch table is checked against it at startup.
var declaredMethods = []string{
	"registerUser", "loginUser", "getUser", "findUsers", "getCurrentUserInfo",
	"getUserRooms", "getRoomUsers", "createRoom", "addUserToRoom",
	"sendChatMessage", "updateMessage", "getRoomHistory", "getMessagesByIndex",
	"getReadMessagesCount", "setReadMessagesCount",
	"joinCall", "disconnectCall", "updateCallMedia", "getCall",
	"RtcDescription", "RtcCandidate",
}

func (ctl *Controller) methodTable() map[string]handlerFunc {
	return map[string]handlerFunc{
		"registerUser":         ctl.registerUser,
		"loginUser":            ctl.loginUser,
		"getUser":              ctl.getUser,
		"findUsers":            ctl.findUsers,
		"getCurrentUserInfo":   ctl.getCurrentUserInfo,
		"getUserRooms":         ctl.getUserRooms,
		"getRoomUsers":         ctl.getRoomUsers,
		"createRoom":           ctl.createRoom,
		"addUserToRoom":        ctl.addUserToRoom,
		"sendChatMessage":      ctl.sendChatMessage,
		"updateMessage":        ctl.updateMessage,
		"getRoomHistory":       ctl.getRoomHistory,
		"getMessagesByIndex":   ctl.getMessagesByIndex,
		"getReadMessagesCount": ctl.getReadMessagesCount,
		"setReadMessagesCount": ctl.setReadMessagesCount,
		"joinCall":             ctl.joinCall,
		"disconnectCall":       ctl.disconnectCall,
		"updateCallMedia":      ctl.updateCallMedia,
		"getCall":              ctl.getCall,
		"RtcDescription":       ctl.rtcDescription,
		"RtcCandidate":         ctl.rtcCandidate,
	}
}

func validateTable(methods map[string]handlerFunc) error {
	for _, name := range declaredMethods {
		if methods[name] == nil {
			return fmt.Errorf("method table missing %q", name)
		}
	}
	if len(methods) != len(declaredMethods) {
		return fmt.Errorf("method table has %d entries, declared %d", len(methods), len(declaredMethods))
	}
	return nil
}

// handleFrame parses one inbound frame. A malformed frame is logged and
// dropped; it never terminates the connection.
func (ctl *Controller) handleFrame(ctx context.Context, conn *WsConn, data []byte) {
	var env core.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("malformed frame")
		return
	}
	switch env.Type {
	case core.TypeMethodCall:
		ctl.handleMethodCall(ctx, conn, env)
	default:
		ctl.sendError(conn, env.MessageID, "Unsupported message type: "+env.Type)
	}
}

func (ctl *Controller) handleMethodCall(ctx context.Context, conn *WsConn, env core.Envelope) {
	handler, ok := ctl.methods[env.Data.Method]
	if !ok {
		ctl.sendError(conn, env.MessageID, "Unknown method received: "+env.Data.Method)
		return
	}

	args := env.Data.Args
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}

	ret, err := handler(ctx, conn, args)
	if err != nil {
		var sendable *core.SendableError
		if errors.As(err, &sendable) {
			log.Info().Str("module", "signal").Str("method", env.Data.Method).Str("error", sendable.Error()).Msg("method rejected")
			ctl.sendError(conn, env.MessageID, sendable.UserMessage)
			return
		}
		log.Error().Err(err).Str("module", "signal").Str("method", env.Data.Method).Msg("method failed")
		ctl.sendError(conn, env.MessageID, "Server error")
		return
	}
	ctl.sendSuccess(conn, env.MessageID, ret)
}

func (ctl *Controller) sendSuccess(conn *WsConn, to core.MessageID, ret interface{}) {
	if ret == nil {
		ret = struct{}{}
	}
	ctl.sendResponse(conn, core.ResponseData{
		Status:     core.StatusSuccess,
		Return:     ret,
		ResponseTo: to,
	})
}

func (ctl *Controller) sendError(conn *WsConn, to core.MessageID, errorString string) {
	ctl.sendResponse(conn, core.ResponseData{
		Status:      core.StatusError,
		ErrorString: errorString,
		ResponseTo:  to,
	})
}

func (ctl *Controller) sendResponse(conn *WsConn, data core.ResponseData) {
	resp := core.Response{
		Type:       core.TypeResponse,
		APIVersion: core.APIVersion,
		Data:       data,
	}
	b, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("marshal response")
		return
	}
	if err := conn.TrySend(core.Frame(b)); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("response dropped")
	}
}
