package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/edinsky/relay/internal/core"
	"github.com/edinsky/relay/internal/domain"
)

// Registry is the session registry and room broadcast index: user
// identity to live connection, and per-room sets of connections
// entitled to receive pushes. One mutex guards both, they always change
// together.
type Registry struct {
	mu      sync.RWMutex
	byUser  map[domain.UserID]core.SignalConnection
	rooms   map[domain.RoomID]map[core.SignalConnection]struct{}
	roomsOf map[core.SignalConnection]map[domain.RoomID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		byUser:  make(map[domain.UserID]core.SignalConnection),
		rooms:   make(map[domain.RoomID]map[core.SignalConnection]struct{}),
		roomsOf: make(map[core.SignalConnection]map[domain.RoomID]struct{}),
	}
}

// Authorize records conn for userID and adds it to the broadcast set of
// every room in roomIDs. Calling it twice for the same connection does
// not duplicate entries. When another connection already holds the
// identity it is unindexed first and returned so the caller can close
// it (evict-and-replace).
func (r *Registry) Authorize(conn core.SignalConnection, userID domain.UserID, roomIDs []domain.RoomID) core.SignalConnection {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted core.SignalConnection
	if prev, ok := r.byUser[userID]; ok && prev != conn {
		r.dropLocked(prev)
		evicted = prev
	}

	r.byUser[userID] = conn
	if r.roomsOf[conn] == nil {
		r.roomsOf[conn] = make(map[domain.RoomID]struct{})
	}
	for _, roomID := range roomIDs {
		r.grantLocked(conn, roomID)
	}
	log.Info().Str("module", "app.registry").Str("user", string(userID)).Int("rooms", len(roomIDs)).Msg("authorized connection")
	return evicted
}

// Forget removes conn from every broadcast set it belongs to and, when
// it still holds the identity, from the user map. Purely in-memory, so
// cleanup can never fail half-way.
func (r *Registry) Forget(userID domain.UserID, conn core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropLocked(conn)
	if cur, ok := r.byUser[userID]; ok && cur == conn {
		delete(r.byUser, userID)
	}
	log.Info().Str("module", "app.registry").Str("user", string(userID)).Msg("forgot connection")
}

// Grant adds conn to one room's broadcast set, used when a membership
// is created while the connection is live.
func (r *Registry) Grant(conn core.SignalConnection, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.roomsOf[conn] == nil {
		r.roomsOf[conn] = make(map[domain.RoomID]struct{})
	}
	r.grantLocked(conn, roomID)
}

// Revoke removes conn from one room's broadcast set.
func (r *Registry) Revoke(conn core.SignalConnection, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.rooms[roomID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(r.rooms, roomID)
		}
	}
	if of, ok := r.roomsOf[conn]; ok {
		delete(of, roomID)
	}
}

// Lookup returns the live connection of userID, if any.
func (r *Registry) Lookup(userID domain.UserID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byUser[userID]
	return conn, ok
}

// RoomConnections snapshots a room's broadcast set, excluding except
// when non-nil.
func (r *Registry) RoomConnections(roomID domain.RoomID, except core.SignalConnection) []core.SignalConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.rooms[roomID]
	out := make([]core.SignalConnection, 0, len(set))
	for conn := range set {
		if conn == except {
			continue
		}
		out = append(out, conn)
	}
	return out
}

func (r *Registry) grantLocked(conn core.SignalConnection, roomID domain.RoomID) {
	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[core.SignalConnection]struct{})
	}
	r.rooms[roomID][conn] = struct{}{}
	r.roomsOf[conn][roomID] = struct{}{}
}

func (r *Registry) dropLocked(conn core.SignalConnection) {
	for roomID := range r.roomsOf[conn] {
		if set, ok := r.rooms[roomID]; ok {
			delete(set, conn)
			if len(set) == 0 {
				delete(r.rooms, roomID)
			}
		}
	}
	delete(r.roomsOf, conn)
}
