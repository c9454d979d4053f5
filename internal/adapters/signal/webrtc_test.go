package signal

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
)

func TestRtcDescriptionRelayRewritesSender(t *testing.T) {
	t.Parallel()

	ctl := newTestController(t)
	caller := newTestConn()
	callerID := register(t, ctl, caller, "offerer")
	callee := newTestConn()
	calleeID := register(t, ctl, callee, "answerer")
	bystander := newTestConn()
	register(t, ctl, bystander, "bystander")
	drainPushes(t, callee)
	drainPushes(t, bystander)

	args := fmt.Sprintf(`{"id":%q,"type":"offer","sdp":"v=0 fake"}`, calleeID)
	callOK(t, ctl, caller, 2, "RtcDescription", args)

	pushes := drainPushes(t, callee)
	desc, ok := pushByMethod(pushes, "RtcDescription")
	if !ok {
		t.Fatalf("callee pushes = %+v, want RtcDescription", pushes)
	}
	relayed := desc.Data.Args.(map[string]interface{})
	if relayed["id"] != callerID {
		t.Fatalf("relayed id = %v, want sender %s", relayed["id"], callerID)
	}
	if relayed["type"] != "offer" || relayed["sdp"] != "v=0 fake" {
		t.Fatalf("relayed description = %#v", relayed)
	}
	if pushes := drainPushes(t, bystander); len(pushes) != 0 {
		t.Fatalf("bystander received relay: %+v", pushes)
	}
	if pushes := drainPushes(t, caller); len(pushes) != 0 {
		t.Fatalf("sender received own relay: %+v", pushes)
	}
}

func TestRtcCandidateRelay(t *testing.T) {
	t.Parallel()

	ctl := newTestController(t)
	caller := newTestConn()
	callerID := register(t, ctl, caller, "ice-a")
	callee := newTestConn()
	calleeID := register(t, ctl, callee, "ice-b")
	drainPushes(t, callee)

	args := fmt.Sprintf(`{"id":%q,"candidate":"candidate:1 1 udp 2122 10.0.0.2 51000 typ host"}`, calleeID)
	callOK(t, ctl, caller, 2, "RtcCandidate", args)

	pushes := drainPushes(t, callee)
	cand, ok := pushByMethod(pushes, "RtcCandidate")
	if !ok {
		t.Fatalf("callee pushes = %+v, want RtcCandidate", pushes)
	}
	relayed := cand.Data.Args.(map[string]interface{})
	if relayed["id"] != callerID {
		t.Fatalf("relayed id = %v, want sender %s", relayed["id"], callerID)
	}
	if relayed["candidate"] != "candidate:1 1 udp 2122 10.0.0.2 51000 typ host" {
		t.Fatalf("relayed candidate = %#v", relayed)
	}
}

func TestRtcRelayToUnknownTarget(t *testing.T) {
	t.Parallel()

	ctl := newTestController(t)
	caller := newTestConn()
	register(t, ctl, caller, "alone")

	for i, method := range []string{"RtcDescription", "RtcCandidate"} {
		args := fmt.Sprintf(`{"id":%q}`, uuid.NewString())
		resp := call(t, ctl, caller, 2+i, method, args)
		if resp.Data.ErrorString != "No such authorized user" {
			t.Fatalf("%s errorString = %q, want No such authorized user", method, resp.Data.ErrorString)
		}
	}
}

func TestRtcRelayToOfflineUser(t *testing.T) {
	t.Parallel()

	ctl := newTestController(t)
	caller := newTestConn()
	register(t, ctl, caller, "online")
	offline := newTestConn()
	offlineID := register(t, ctl, offline, "offline")
	ctl.Sessions.Forget(offline.User(), offline)

	args := fmt.Sprintf(`{"id":%q,"type":"answer","sdp":"v=0"}`, offlineID)
	resp := call(t, ctl, caller, 2, "RtcDescription", args)
	if resp.Data.ErrorString != "No such authorized user" {
		t.Fatalf("errorString = %q, want No such authorized user", resp.Data.ErrorString)
	}
}
