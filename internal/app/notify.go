package app

import (
	"encoding/json"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/edinsky/relay/internal/core"
	"github.com/edinsky/relay/internal/domain"
)

// Notifier pushes unsolicited method-call envelopes to connections.
// Delivery is fire-and-forget: a recipient that fails or lags is
// skipped, never retried and never blocks the sender.
type Notifier struct {
	Registry *Registry

	seq atomic.Uint64
}

func NewNotifier(reg *Registry) *Notifier {
	return &Notifier{Registry: reg}
}

// NotifyRoom pushes method/args to every connection in the room's
// broadcast set other than except.
func (n *Notifier) NotifyRoom(roomID domain.RoomID, method string, args interface{}, except core.SignalConnection) {
	frame, err := n.frame(method, args)
	if err != nil {
		log.Error().Err(err).Str("module", "app.notify").Str("method", method).Msg("marshal push")
		return
	}
	sent := 0
	for _, conn := range n.Registry.RoomConnections(roomID, except) {
		if err := conn.TrySend(frame); err != nil {
			log.Debug().Err(err).Str("module", "app.notify").Str("method", method).Msg("push dropped")
			continue
		}
		sent++
	}
	log.Debug().Str("module", "app.notify").Str("room", string(roomID)).Str("method", method).Int("sent_to", sent).Msg("room notified")
}

// SendToOne pushes method/args to a single connection, the relay path
// of the call signaling methods.
func (n *Notifier) SendToOne(conn core.SignalConnection, method string, args interface{}) {
	frame, err := n.frame(method, args)
	if err != nil {
		log.Error().Err(err).Str("module", "app.notify").Str("method", method).Msg("marshal push")
		return
	}
	if err := conn.TrySend(frame); err != nil {
		log.Debug().Err(err).Str("module", "app.notify").Str("method", method).Msg("push dropped")
	}
}

func (n *Notifier) frame(method string, args interface{}) (core.Frame, error) {
	push := core.Push{
		Type:      core.TypeMethodCall,
		MessageID: n.seq.Add(1),
		Data:      core.PushData{Method: method, Args: args},
	}
	b, err := json.Marshal(push)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}
