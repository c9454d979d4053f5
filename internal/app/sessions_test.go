package app

import (
	"context"
	"sync"
	"testing"

	"github.com/edinsky/relay/internal/domain"
	"github.com/edinsky/relay/internal/storage"
)

type fakeRoomStore struct {
	mu          sync.Mutex
	memberships map[domain.UserID][]domain.Room
	byTag       map[string]*domain.Room
	byID        map[domain.RoomID]*domain.Room
	created     int
}

func newFakeRoomStore() *fakeRoomStore {
	return &fakeRoomStore{
		memberships: make(map[domain.UserID][]domain.Room),
		byTag:       make(map[string]*domain.Room),
		byID:        make(map[domain.RoomID]*domain.Room),
	}
}

func (f *fakeRoomStore) MembershipsForUser(_ context.Context, userID domain.UserID, _ bool) ([]domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.memberships[userID], nil
}

func (f *fakeRoomStore) GetByTag(_ context.Context, tag string) (*domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok := f.byTag[tag]; ok {
		return room, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeRoomStore) Create(_ context.Context, room *domain.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if room.Tag != "" {
		if _, ok := f.byTag[room.Tag]; ok {
			return storage.ErrAlreadyExists
		}
		f.byTag[room.Tag] = room
	}
	f.byID[room.ID] = room
	f.created++
	return nil
}

func (f *fakeRoomStore) AddMembership(_ context.Context, roomID domain.RoomID, userID domain.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberships[userID] = append(f.memberships[userID], domain.Room{ID: roomID})
	return nil
}

func (f *fakeRoomStore) Members(_ context.Context, _ domain.RoomID) ([]domain.User, error) {
	return nil, nil
}

func (f *fakeRoomStore) GetByID(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok := f.byID[id]; ok {
		return room, nil
	}
	return nil, storage.ErrNotFound
}

func newTestSessions(rooms storage.RoomStore) *Sessions {
	reg := NewRegistry()
	return &Sessions{
		Registry: reg,
		Calls:    NewCallManager(),
		Notify:   NewNotifier(reg),
		Rooms:    rooms,
	}
}

func TestAuthorizePopulatesBroadcastSets(t *testing.T) {
	t.Parallel()

	rooms := newFakeRoomStore()
	rooms.memberships["u1"] = []domain.Room{{ID: "r1"}, {ID: "r2"}}
	s := newTestSessions(rooms)
	conn := &fakeConn{}

	if err := s.Authorize(context.Background(), conn, &domain.User{ID: "u1"}); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	for _, roomID := range []domain.RoomID{"r1", "r2"} {
		if len(s.Registry.RoomConnections(roomID, nil)) != 1 {
			t.Fatalf("room %s broadcast set not populated", roomID)
		}
	}
}

func TestAuthorizeClosesEvictedConnection(t *testing.T) {
	t.Parallel()

	s := newTestSessions(newFakeRoomStore())
	first := &fakeConn{}
	second := &fakeConn{}
	user := &domain.User{ID: "u1"}

	if err := s.Authorize(context.Background(), first, user); err != nil {
		t.Fatalf("authorize first: %v", err)
	}
	if err := s.Authorize(context.Background(), second, user); err != nil {
		t.Fatalf("authorize second: %v", err)
	}
	if !first.closed {
		t.Fatal("evicted connection should be closed")
	}
}

func TestForgetTerminatesActiveCall(t *testing.T) {
	t.Parallel()

	rooms := newFakeRoomStore()
	rooms.memberships["u1"] = []domain.Room{{ID: "r1"}}
	rooms.memberships["u2"] = []domain.Room{{ID: "r1"}}
	s := newTestSessions(rooms)
	leaver := &fakeConn{}
	witness := &fakeConn{}
	ctx := context.Background()
	if err := s.Authorize(ctx, leaver, &domain.User{ID: "u1"}); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if err := s.Authorize(ctx, witness, &domain.User{ID: "u2"}); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	s.Calls.Join("u1", "r1")

	s.Forget(&domain.User{ID: "u1"}, leaver)

	if _, ok := s.Calls.RoomOf("u1"); ok {
		t.Fatal("call mapping should be gone after forget")
	}
	push := witness.lastPush(t)
	if push.Data.Method != "disconnectCall" {
		t.Fatalf("witness got %q, want disconnectCall", push.Data.Method)
	}
	if leaver.sent() != 0 {
		t.Fatal("leaver must not get its own disconnect push")
	}
	if _, ok := s.Registry.Lookup("u1"); ok {
		t.Fatal("identity mapping should be gone after forget")
	}
}

func TestForgetOfEvictedConnectionKeepsNewCall(t *testing.T) {
	t.Parallel()

	rooms := newFakeRoomStore()
	rooms.memberships["u1"] = []domain.Room{{ID: "r1"}}
	rooms.memberships["u2"] = []domain.Room{{ID: "r1"}}
	s := newTestSessions(rooms)
	old := &fakeConn{}
	fresh := &fakeConn{}
	witness := &fakeConn{}
	user := &domain.User{ID: "u1"}
	ctx := context.Background()

	if err := s.Authorize(ctx, old, user); err != nil {
		t.Fatalf("authorize old: %v", err)
	}
	if err := s.Authorize(ctx, fresh, user); err != nil {
		t.Fatalf("authorize fresh: %v", err)
	}
	if err := s.Authorize(ctx, witness, &domain.User{ID: "u2"}); err != nil {
		t.Fatalf("authorize witness: %v", err)
	}
	// The call belongs to the replacement connection's session.
	s.Calls.Join("u1", "r1")

	// Delayed close of the evicted socket.
	s.Forget(user, old)

	if _, ok := s.Calls.RoomOf("u1"); !ok {
		t.Fatal("stale cleanup must not tear down the replacement's call")
	}
	if witness.sent() != 0 {
		t.Fatalf("witness got %d frames, want no spurious disconnectCall", witness.sent())
	}
	if got, ok := s.Registry.Lookup("u1"); !ok || got != fresh {
		t.Fatal("replacement connection should still hold the identity")
	}

	// The replacement's own close still ends the call.
	s.Forget(user, fresh)
	if _, ok := s.Calls.RoomOf("u1"); ok {
		t.Fatal("call mapping should be gone after the live connection closes")
	}
	if push := witness.lastPush(t); push.Data.Method != "disconnectCall" {
		t.Fatalf("witness got %q, want disconnectCall", push.Data.Method)
	}
}

func TestStartRoomIsCreatedOnce(t *testing.T) {
	t.Parallel()

	rooms := newFakeRoomStore()
	s := newTestSessions(rooms)
	ctx := context.Background()

	first, err := s.StartRoom(ctx)
	if err != nil {
		t.Fatalf("start room: %v", err)
	}
	second, err := s.StartRoom(ctx)
	if err != nil {
		t.Fatalf("start room again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("start room should be stable across calls")
	}
	if rooms.created != 1 {
		t.Fatalf("created %d rooms, want 1", rooms.created)
	}
	if first.Tag != domain.StartRoomTag {
		t.Fatalf("tag = %q, want %q", first.Tag, domain.StartRoomTag)
	}
}

func TestPlaceInStartRoomGrantsLiveConnection(t *testing.T) {
	t.Parallel()

	rooms := newFakeRoomStore()
	s := newTestSessions(rooms)
	conn := &fakeConn{}
	ctx := context.Background()
	if err := s.Authorize(ctx, conn, &domain.User{ID: "u1"}); err != nil {
		t.Fatalf("authorize: %v", err)
	}

	if err := s.PlaceInStartRoom(ctx, "u1"); err != nil {
		t.Fatalf("place in start room: %v", err)
	}
	room, err := s.Rooms.GetByTag(ctx, domain.StartRoomTag)
	if err != nil {
		t.Fatalf("get start room: %v", err)
	}
	if len(s.Registry.RoomConnections(room.ID, nil)) != 1 {
		t.Fatal("live connection should be in the start room broadcast set")
	}
}
