// Package signal is the WebSocket adapter: it owns the transport
// connections and dispatches inbound method-call envelopes to the
// relay's handlers.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/edinsky/relay/internal/app"
	"github.com/edinsky/relay/internal/config"
	"github.com/edinsky/relay/internal/core"
	"github.com/edinsky/relay/internal/domain"
	"github.com/edinsky/relay/internal/storage"
)

var ErrBackpressure = errors.New("backpressure")

// Controller terminates WebSocket connections and runs the method
// dispatch for each of them.
type Controller struct {
	Sessions *app.Sessions
	Registry *app.Registry
	Calls    *app.CallManager
	Notify   *app.Notifier
	Users    storage.UserStore
	Rooms    storage.RoomStore
	Messages storage.MessageStore

	cfg     *config.Config
	limiter *AttemptLimiter
	methods map[string]handlerFunc
}

func NewController(cfg *config.Config, sessions *app.Sessions, users storage.UserStore, rooms storage.RoomStore, messages storage.MessageStore) (*Controller, error) {
	ctl := &Controller{
		Sessions: sessions,
		Registry: sessions.Registry,
		Calls:    sessions.Calls,
		Notify:   sessions.Notify,
		Users:    users,
		Rooms:    rooms,
		Messages: messages,
		cfg:      cfg,
		limiter:  NewAttemptLimiter(cfg.LoginLimit, cfg.LoginInterval),
	}
	ctl.methods = ctl.methodTable()
	if err := validateTable(ctl.methods); err != nil {
		return nil, err
	}
	return ctl, nil
}

// WsConn is one live client connection. The send channel is drained by
// the write pump; TrySend drops instead of blocking when it is full.
type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
	user   *domain.User
}

func (c *WsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
}

// User returns the identity bound on login, nil before that.
func (c *WsConn) User() *domain.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

func (c *WsConn) setUser(u *domain.User) {
	c.mu.Lock()
	c.user = u
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and starts the connection's pumps.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")
	log.Info().Str("module", "signal").Str("client", token).Str("ip", c.ClientIP()).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}

	conn := &WsConn{
		conn: ws,
		send: make(chan core.Frame, ctl.cfg.SendBuffer),
	}

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, conn)
}
