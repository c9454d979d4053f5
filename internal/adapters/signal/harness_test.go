package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/edinsky/relay/internal/app"
	"github.com/edinsky/relay/internal/config"
	"github.com/edinsky/relay/internal/core"
	"github.com/edinsky/relay/internal/storage/sqlite"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cfg := &config.Config{
		ReadLimit:     32768,
		SendBuffer:    64,
		PingPeriod:    time.Minute,
		WriteTimeout:  time.Second,
		LoginLimit:    100,
		LoginInterval: time.Minute,
	}
	registry := app.NewRegistry()
	sessions := &app.Sessions{
		Registry: registry,
		Calls:    app.NewCallManager(),
		Notify:   app.NewNotifier(registry),
		Rooms:    store.Rooms,
	}
	ctl, err := NewController(cfg, sessions, store.Users, store.Rooms, store.Messages)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return ctl
}

// newTestConn builds a connection without a transport; dispatch only
// touches the send channel.
func newTestConn() *WsConn {
	return &WsConn{send: make(chan core.Frame, 64)}
}

// call feeds one method-call frame through dispatch and returns the
// correlated response.
func call(t *testing.T, ctl *Controller, conn *WsConn, id int, method, args string) core.Response {
	t.Helper()
	frame := fmt.Sprintf(`{"type":"methodCall","messageID":%d,"data":{"method":%q,"args":%s}}`, id, method, args)
	ctl.handleFrame(context.Background(), conn, []byte(frame))
	return readResponse(t, conn)
}

func callOK(t *testing.T, ctl *Controller, conn *WsConn, id int, method, args string) core.Response {
	t.Helper()
	resp := call(t, ctl, conn, id, method, args)
	if resp.Data.Status != core.StatusSuccess {
		t.Fatalf("%s failed: %s", method, resp.Data.ErrorString)
	}
	return resp
}

func readResponse(t *testing.T, conn *WsConn) core.Response {
	t.Helper()
	for {
		select {
		case frame := <-conn.send:
			var resp core.Response
			if err := json.Unmarshal(frame, &resp); err != nil {
				t.Fatalf("unmarshal response: %v", err)
			}
			if resp.Type == core.TypeResponse {
				return resp
			}
			// Skip interleaved pushes.
		default:
			t.Fatal("no response frame")
		}
	}
}

// drainPushes returns all buffered pushes on conn, dropping responses.
func drainPushes(t *testing.T, conn *WsConn) []core.Push {
	t.Helper()
	var out []core.Push
	for {
		select {
		case frame := <-conn.send:
			var push core.Push
			if err := json.Unmarshal(frame, &push); err != nil {
				t.Fatalf("unmarshal frame: %v", err)
			}
			if push.Type == core.TypeMethodCall {
				out = append(out, push)
			}
		default:
			return out
		}
	}
}

func pushByMethod(pushes []core.Push, method string) (core.Push, bool) {
	for _, push := range pushes {
		if push.Data.Method == method {
			return push, true
		}
	}
	return core.Push{}, false
}

// register runs registerUser on conn and returns the new user's id.
func register(t *testing.T, ctl *Controller, conn *WsConn, login string) string {
	t.Helper()
	resp := call(t, ctl, conn, 1, "registerUser", fmt.Sprintf(`{"login":%q,"password":"pw"}`, login))
	if resp.Data.Status != core.StatusSuccess {
		t.Fatalf("register %s failed: %s", login, resp.Data.ErrorString)
	}
	user, ok := resp.Data.Return.(map[string]interface{})
	if !ok {
		t.Fatalf("register return = %#v", resp.Data.Return)
	}
	id, _ := user["id"].(string)
	if id == "" {
		t.Fatal("register returned no user id")
	}
	return id
}
