package call_test

import (
	"testing"

	"github.com/switchboard-ai/switchboard/pkg/call"
)

func TestRegistry(t *testing.T) {
	reg := call.NewRegistry()

	h := newHarness(t, "reg-1", call.Config{})
	reg.Add(h.sess)

	if got := reg.Len(); got != 1 {
		t.Errorf("Len = %d", got)
	}

	s, ok := reg.Get("reg-1")
	if !ok || s.ID() != "reg-1" {
		t.Fatal("registered session not found")
	}
	if _, ok := reg.Get("missing"); ok {
		t.Error("found a session that was never added")
	}

	if reg.Terminate("missing", "admin") {
		t.Error("terminating an unknown call must report false")
	}

	h.connect(t, "caller")
	waitState(t, h.sess, call.StateListening)
	if !reg.Terminate("reg-1", "admin") {
		t.Error("terminate on active call reported false")
	}
	waitDone(t, h.sess)

	reg.Remove("reg-1")
	if got := reg.Len(); got != 0 {
		t.Errorf("Len after Remove = %d", got)
	}
}
