package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/edinsky/relay/internal/core"
)

// fakeConn records delivered frames; with fail set every send errors.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	fail   bool
	closed bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("send failed")
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeConn) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func decode(t *testing.T, frame core.Frame, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(frame, v); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
}

func (f *fakeConn) lastPush(t *testing.T) core.Push {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		t.Fatal("no frames delivered")
	}
	var push core.Push
	if err := json.Unmarshal(f.frames[len(f.frames)-1], &push); err != nil {
		t.Fatalf("unmarshal push: %v", err)
	}
	return push
}
