package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/edinsky/relay/internal/core"
	"github.com/edinsky/relay/internal/domain"
	"github.com/edinsky/relay/internal/storage"
)

type credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (c credentials) blank() bool {
	return strings.TrimSpace(c.Login) == "" || strings.TrimSpace(c.Password) == ""
}

func (ctl *Controller) loginUser(ctx context.Context, conn *WsConn, args json.RawMessage) (interface{}, error) {
	var creds credentials
	if err := json.Unmarshal(args, &creds); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}
	if creds.blank() {
		return nil, core.ErrEmptyCredentials("attempt to login with null credentials")
	}
	if !ctl.limiter.Allow(creds.Login) {
		return nil, core.Sendable("Too many attempts", "login rate limit hit for "+creds.Login)
	}
	ok, err := ctl.Users.ValidateCredentials(ctx, creds.Login, creds.Password)
	if err != nil {
		return nil, fmt.Errorf("validate credentials: %w", err)
	}
	if !ok {
		return nil, core.ErrInvalidCredentials("attempt to login with invalid credentials")
	}

	user, err := ctl.Users.GetByLogin(ctx, creds.Login)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	if err := ctl.Sessions.Authorize(ctx, conn, user); err != nil {
		return nil, err
	}
	conn.setUser(user)
	log.Info().Str("module", "signal").Str("user", string(user.ID)).Str("name", user.Name).Msg("logged in")
	return user, nil
}

func (ctl *Controller) registerUser(ctx context.Context, conn *WsConn, args json.RawMessage) (interface{}, error) {
	var creds credentials
	if err := json.Unmarshal(args, &creds); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}
	if creds.blank() {
		return nil, core.ErrEmptyCredentials("attempt to register with null credentials")
	}
	if !ctl.limiter.Allow(creds.Login) {
		return nil, core.Sendable("Too many attempts", "register rate limit hit for "+creds.Login)
	}

	if _, err := ctl.Users.GetByLogin(ctx, creds.Login); err == nil {
		return nil, core.ErrReregistration("attempt to register with existing login")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("check login: %w", err)
	}

	user, err := domain.NewUser(creds.Login, "")
	if err != nil {
		return nil, core.Sendable(err.Error(), "")
	}
	if err := ctl.Users.Create(ctx, user, creds.Password); err != nil {
		// Two registrations raced past the lookup; the unique index wins.
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, core.ErrReregistration("attempt to register with existing login")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := ctl.Sessions.Authorize(ctx, conn, user); err != nil {
		return nil, err
	}
	conn.setUser(user)
	if err := ctl.Sessions.PlaceInStartRoom(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("place in start room: %w", err)
	}
	log.Info().Str("module", "signal").Str("user", string(user.ID)).Str("name", user.Name).Msg("registered new user")
	return user, nil
}

func (ctl *Controller) getUser(ctx context.Context, conn *WsConn, args json.RawMessage) (interface{}, error) {
	var p struct {
		ID domain.UserID `json:"id"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}
	if p.ID == "" {
		user := conn.User()
		if user == nil {
			return nil, core.ErrNotAuthorized()
		}
		p.ID = user.ID
	}
	return ctl.Users.GetByID(ctx, p.ID)
}

func (ctl *Controller) findUsers(ctx context.Context, _ *WsConn, args json.RawMessage) (interface{}, error) {
	var p struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}
	return ctl.Users.Find(ctx, p.Query)
}

func (ctl *Controller) getCurrentUserInfo(ctx context.Context, conn *WsConn, _ json.RawMessage) (interface{}, error) {
	user := conn.User()
	if user == nil {
		return nil, core.ErrNotAuthorized()
	}
	return ctl.Users.GetByID(ctx, user.ID)
}
