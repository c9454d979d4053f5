package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/edinsky/relay/internal/domain"
	"github.com/edinsky/relay/internal/storage"
)

// Rooms implements storage.RoomStore.
type Rooms struct {
	sqlDB *sql.DB
}

// MembershipsForUser returns the rooms userID belongs to. With minimal
// set only room ids are selected, the projection authorization uses.
func (s *Rooms) MembershipsForUser(ctx context.Context, userID domain.UserID, minimal bool) ([]domain.Room, error) {
	query := `SELECT rooms.id, rooms.type, COALESCE(rooms.tag, ''), rooms.name
	          FROM room_users JOIN rooms ON room_users.room_id = rooms.id
	          WHERE room_users.user_id = ?`
	if minimal {
		query = `SELECT rooms.id, '', '', ''
		         FROM room_users JOIN rooms ON room_users.room_id = rooms.id
		         WHERE room_users.user_id = ?`
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, string(userID))
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	defer rows.Close()

	var out []domain.Room
	for rows.Next() {
		var r domain.Room
		if err := rows.Scan(&r.ID, &r.Type, &r.Tag, &r.Name); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Rooms) GetByTag(ctx context.Context, tag string) (*domain.Room, error) {
	return scanRoom(s.sqlDB.QueryRowContext(ctx,
		`SELECT id, type, COALESCE(tag, ''), name FROM rooms WHERE tag = ?`, tag))
}

func (s *Rooms) GetByID(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	return scanRoom(s.sqlDB.QueryRowContext(ctx,
		`SELECT id, type, COALESCE(tag, ''), name FROM rooms WHERE id = ?`, string(id)))
}

func scanRoom(row *sql.Row) (*domain.Room, error) {
	var r domain.Room
	err := row.Scan(&r.ID, &r.Type, &r.Tag, &r.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan room: %w", err)
	}
	return &r, nil
}

func (s *Rooms) Create(ctx context.Context, room *domain.Room) error {
	var tag interface{}
	if room.Tag != "" {
		tag = room.Tag
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO rooms (id, type, tag, name, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(room.ID), room.Type, tag, room.Name, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

// AddMembership is idempotent; adding an existing member is a no-op.
func (s *Rooms) AddMembership(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT OR IGNORE INTO room_users (room_id, user_id) VALUES (?, ?)`,
		string(roomID), string(userID),
	)
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (s *Rooms) Members(ctx context.Context, roomID domain.RoomID) ([]domain.User, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT users.id, users.login, users.name
		 FROM room_users JOIN users ON room_users.user_id = users.id
		 WHERE room_users.room_id = ?
		 ORDER BY users.login`, string(roomID))
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Login, &u.Name); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
