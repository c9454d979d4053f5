package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/edinsky/relay/internal/core"
	"github.com/edinsky/relay/internal/domain"
)

// callState is one user's InCall record. Absence from CallManager.byUser
// means NotInCall.
type callState struct {
	room  domain.RoomID
	media domain.MediaState
}

// CallParticipant is the read-only view of one call member.
type CallParticipant struct {
	UserID domain.UserID `json:"userID"`
	Audio  bool          `json:"audio"`
	Video  bool          `json:"video"`
}

// CallSnapshot describes a room's active call.
type CallSnapshot struct {
	RoomID       domain.RoomID     `json:"roomID"`
	Participants []CallParticipant `json:"participants"`
}

// CallManager tracks which room each user is in-call for and the
// per-participant media flags. A user is in at most one call; an empty
// call session is removed when its last participant leaves.
type CallManager struct {
	mu     sync.Mutex
	byUser map[domain.UserID]*callState
	byRoom map[domain.RoomID]map[domain.UserID]*callState
}

func NewCallManager() *CallManager {
	return &CallManager{
		byUser: make(map[domain.UserID]*callState),
		byRoom: make(map[domain.RoomID]map[domain.UserID]*callState),
	}
}

// Join puts userID into roomID's call with muted media. A user already
// in another room's call is moved; joining the same call again resets
// nothing but is not an error.
func (c *CallManager) Join(userID domain.UserID, roomID domain.RoomID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.byUser[userID]; ok {
		if st.room == roomID {
			return
		}
		c.removeLocked(userID, st.room)
	}

	st := &callState{room: roomID}
	c.byUser[userID] = st
	if c.byRoom[roomID] == nil {
		c.byRoom[roomID] = make(map[domain.UserID]*callState)
	}
	c.byRoom[roomID][userID] = st
	log.Info().Str("module", "app.calls").Str("user", string(userID)).Str("room", string(roomID)).Msg("joined call")
}

// Disconnect removes userID's call record and reports which room it
// belonged to.
func (c *CallManager) Disconnect(userID domain.UserID) (domain.RoomID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.byUser[userID]
	if !ok {
		return "", core.ErrNotInsideTheCall()
	}
	c.removeLocked(userID, st.room)
	log.Info().Str("module", "app.calls").Str("user", string(userID)).Str("room", string(st.room)).Msg("left call")
	return st.room, nil
}

// SetMedia updates userID's media flags and returns the call room and
// the new state.
func (c *CallManager) SetMedia(userID domain.UserID, audio, video bool) (domain.RoomID, domain.MediaState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.byUser[userID]
	if !ok {
		return "", domain.MediaState{}, core.ErrNotInCall()
	}
	st.media = domain.MediaState{Audio: audio, Video: video}
	return st.room, st.media, nil
}

// RoomOf reports the room userID is in-call for.
func (c *CallManager) RoomOf(userID domain.UserID) (domain.RoomID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.byUser[userID]
	if !ok {
		return "", false
	}
	return st.room, true
}

// Snapshot returns the room's current participants, nil when no call is
// active.
func (c *CallManager) Snapshot(roomID domain.RoomID) *CallSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	members, ok := c.byRoom[roomID]
	if !ok {
		return nil
	}
	snap := &CallSnapshot{RoomID: roomID, Participants: make([]CallParticipant, 0, len(members))}
	for userID, st := range members {
		snap.Participants = append(snap.Participants, CallParticipant{
			UserID: userID,
			Audio:  st.media.Audio,
			Video:  st.media.Video,
		})
	}
	return snap
}

func (c *CallManager) removeLocked(userID domain.UserID, roomID domain.RoomID) {
	delete(c.byUser, userID)
	if members, ok := c.byRoom[roomID]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(c.byRoom, roomID)
		}
	}
}
