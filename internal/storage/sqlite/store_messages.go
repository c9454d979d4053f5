package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/edinsky/relay/internal/domain"
	"github.com/edinsky/relay/internal/storage"
)

// Messages implements storage.MessageStore.
type Messages struct {
	sqlDB *sql.DB
}

// Create inserts a draft message and assigns it the next per-room
// sequence number.
func (s *Messages) Create(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (*domain.Message, error) {
	id := domain.MessageID(uuid.NewString())
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO messages (id, seq, room_id, user_id)
		 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE room_id = ?), ?, ?)`,
		string(id), string(roomID), string(roomID), string(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &domain.Message{ID: id, RoomID: roomID, UserID: userID, Status: "draft"}, nil
}

func (s *Messages) Update(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE messages SET body = ?, time = ?, status = ? WHERE id = ?`,
		msg.Body, msg.Time, msg.Status, string(msg.ID),
	)
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	if n == 0 {
		return nil, storage.ErrNotFound
	}
	return s.getByID(ctx, msg.ID)
}

func (s *Messages) getByID(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	var m domain.Message
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, room_id, user_id, body, time, status FROM messages WHERE id = ?`, string(id),
	).Scan(&m.ID, &m.RoomID, &m.UserID, &m.Body, &m.Time, &m.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return &m, nil
}

// Find returns the newest messages of a room, oldest first. Limit 0
// means no limit.
func (s *Messages) Find(ctx context.Context, q storage.MessageQuery) ([]domain.Message, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, room_id, user_id, body, time, status FROM (
		     SELECT * FROM messages WHERE room_id = ?
		     ORDER BY seq DESC LIMIT ? OFFSET ?
		 ) ORDER BY seq ASC`,
		string(q.RoomID), limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	return collectMessages(rows)
}

// Range returns messages with sequence numbers in [from, to].
func (s *Messages) Range(ctx context.Context, from, to int, roomID domain.RoomID) ([]domain.Message, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, room_id, user_id, body, time, status FROM messages
		 WHERE room_id = ? AND seq BETWEEN ? AND ?
		 ORDER BY seq ASC`,
		string(roomID), from, to)
	if err != nil {
		return nil, fmt.Errorf("range messages: %w", err)
	}
	return collectMessages(rows)
}

func collectMessages(rows *sql.Rows) ([]domain.Message, error) {
	defer rows.Close()
	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.UserID, &m.Body, &m.Time, &m.Status); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ReadCount returns the stored max read count, zero when none exists.
func (s *Messages) ReadCount(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (domain.ReadCount, error) {
	var rc domain.ReadCount
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT max_count FROM read_counts WHERE room_id = ? AND user_id = ?`,
		string(roomID), string(userID),
	).Scan(&rc.MaxCount)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return rc, fmt.Errorf("query read count: %w", err)
	}
	return rc, nil
}

func (s *Messages) SetReadCount(ctx context.Context, roomID domain.RoomID, userID domain.UserID, count int) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO read_counts (room_id, user_id, max_count) VALUES (?, ?, ?)
		 ON CONFLICT (room_id, user_id) DO UPDATE SET max_count = excluded.max_count`,
		string(roomID), string(userID), count,
	)
	if err != nil {
		return fmt.Errorf("set read count: %w", err)
	}
	return nil
}
