package core

import "testing"

func TestSessionAppendAndReset(t *testing.T) {
	reg := NewSessionRegistry()
	sess := reg.Get("conv-1")

	if sess.Len() != 0 {
		t.Fatalf("expected a fresh session to be empty, got %d", sess.Len())
	}

	sess.Append([][]float32{{1}})
	sess.Append([][]float32{{2}})
	if sess.Len() != 2 {
		t.Fatalf("expected 2 blocks after two uploads, got %d", sess.Len())
	}

	sess.Reset()
	if sess.Len() != 0 {
		t.Fatalf("expected 0 blocks after reset, got %d", sess.Len())
	}
}

func TestSessionSnapshotIsolatedFromReset(t *testing.T) {
	reg := NewSessionRegistry()
	sess := reg.Get("conv-1")
	sess.Append([][]float32{{1}})
	sess.Append([][]float32{{2}})

	snapshot := sess.Snapshot()
	sess.Reset()

	if len(snapshot) != 2 {
		t.Fatalf("reset mutated an in-flight snapshot: %d blocks", len(snapshot))
	}
	if snapshot[0][0][0] != 1 || snapshot[1][0][0] != 2 {
		t.Error("snapshot lost upload order")
	}
}

func TestRegistryKeysSessionsIndependently(t *testing.T) {
	reg := NewSessionRegistry()
	reg.Get("a").Append([][]float32{{1}})

	if reg.Get("b").Len() != 0 {
		t.Error("sessions must not share embedding lists")
	}
	if reg.Get("a").Len() != 1 {
		t.Error("expected session a to keep its block")
	}
}

func TestRegistryEmptyIDUsesDefaultSession(t *testing.T) {
	reg := NewSessionRegistry()
	reg.Get("").Append([][]float32{{1}})

	if reg.Get(DefaultSessionID).Len() != 1 {
		t.Error("an empty session id should map to the default session")
	}
}

func TestRegistryNewSessionMintsUniqueIDs(t *testing.T) {
	reg := NewSessionRegistry()
	a := reg.NewSession()
	b := reg.NewSession()
	if a.ID() == b.ID() {
		t.Errorf("expected distinct session ids, both were %q", a.ID())
	}
}
