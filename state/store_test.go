package state

import (
	"testing"
	"time"

	"github.com/rlvaden/authstate/identity"
)

func TestNewStoreSeedsLoadingState(t *testing.T) {
	s := NewStore()

	snap := s.Snapshot()
	if !snap.Loading || snap.Phase != PhaseLoading {
		t.Fatalf("expected initial loading state, got %+v", snap)
	}
	if snap.Authenticated || snap.Identity != nil {
		t.Fatalf("initial state must be unauthenticated, got %+v", snap)
	}
	if snap.Permissions == nil || len(snap.Permissions) != 0 {
		t.Fatalf("expected empty non-nil permission set, got %v", snap.Permissions)
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := NewStore()
	s.Replace(AuthState{
		Identity:    &identity.Identity{ID: "u1", Role: "USER"},
		Permissions: []string{"a"},
		Phase:       PhaseAuthenticated,
	})

	snap := s.Snapshot()
	snap.Identity.Role = "mutated"
	snap.Permissions[0] = "mutated"

	again := s.Snapshot()
	if again.Identity.Role != "USER" || again.Permissions[0] != "a" {
		t.Fatal("mutating a snapshot must not affect the store")
	}
}

func TestReplaceReturnsPrevious(t *testing.T) {
	s := NewStore()

	prev := s.Replace(AuthState{Phase: PhaseUnauthenticated})
	if !prev.Loading {
		t.Fatalf("expected the seeded loading state as previous, got %+v", prev)
	}
	if s.Snapshot().Phase != PhaseUnauthenticated {
		t.Fatal("Replace must install the new state")
	}
}

func TestUpdateAppliesFunction(t *testing.T) {
	s := NewStore()

	installed := s.Update(func(st AuthState) AuthState {
		st.Loading = false
		return st
	})
	if installed.Loading {
		t.Fatal("Update must install the returned state")
	}
	if s.Snapshot().Phase != PhaseLoading {
		t.Fatal("Update must leave untouched fields alone")
	}
}

func TestSubscriberReceivesSnapshots(t *testing.T) {
	s := NewStore()
	sub := s.Subscribe(4)
	defer sub.Cancel()

	s.Replace(AuthState{Phase: PhaseAuthenticated, Identity: &identity.Identity{ID: "u1"}})

	select {
	case snap := <-sub.States():
		if snap.Phase != PhaseAuthenticated || snap.Identity.ID != "u1" {
			t.Fatalf("unexpected snapshot: %+v", snap)
		}
	case <-time.After(time.Second):
		t.Fatal("snapshot never delivered")
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	s := NewStore()
	sub := s.Subscribe(1)
	defer sub.Cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			s.Replace(AuthState{Phase: PhaseUnauthenticated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writer blocked on a slow subscriber")
	}
	if s.Dropped() == 0 {
		t.Fatal("expected dropped notifications for the full buffer")
	}
}

func TestCancelClosesChannel(t *testing.T) {
	s := NewStore()
	sub := s.Subscribe(1)

	sub.Cancel()
	sub.Cancel() // idempotent

	if _, ok := <-sub.States(); ok {
		t.Fatal("cancelled subscription channel must be closed")
	}

	// A write after cancel must not panic on the closed channel.
	s.Replace(AuthState{Phase: PhaseUnauthenticated})
}

func TestPhaseStrings(t *testing.T) {
	cases := map[Phase]string{
		PhaseUninitialized:    "uninitialized",
		PhaseLoading:          "loading",
		PhaseAuthenticated:    "authenticated",
		PhaseUnauthenticated:  "unauthenticated",
		PhasePreviewFromCache: "preview_from_cache",
	}
	for phase, want := range cases {
		if got := phase.String(); got != want {
			t.Fatalf("Phase(%d).String() = %q, want %q", phase, got, want)
		}
	}
}
