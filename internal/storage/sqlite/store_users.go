package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/edinsky/relay/internal/domain"
	"github.com/edinsky/relay/internal/storage"
)

// Users implements storage.UserStore.
type Users struct {
	sqlDB *sql.DB
}

// ValidateCredentials reports whether login/password match a stored
// user. An unknown login is not an error, just a false.
func (s *Users) ValidateCredentials(ctx context.Context, login, password string) (bool, error) {
	var hash string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE login = ?`, login,
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query credentials: %w", err)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

func (s *Users) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	return scanUser(s.sqlDB.QueryRowContext(ctx,
		`SELECT id, login, name FROM users WHERE login = ?`, login))
}

func (s *Users) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return scanUser(s.sqlDB.QueryRowContext(ctx,
		`SELECT id, login, name FROM users WHERE id = ?`, string(id)))
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Login, &u.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// Create inserts a user with a bcrypt password hash.
func (s *Users) Create(ctx context.Context, user *domain.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO users (id, login, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(user.ID), user.Login, user.Name, string(hash), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Find matches users by substring on login or display name. An empty
// query returns everyone.
func (s *Users) Find(ctx context.Context, query string) ([]domain.User, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, login, name FROM users
		 WHERE login LIKE ? OR name LIKE ?
		 ORDER BY login`, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Login, &u.Name); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
