package store

import (
	"testing"
	"time"
)

func TestMemStorePushAndOpenOrder(t *testing.T) {
	s := NewMemStore()
	t0 := time.Now()

	id1, err := s.Push("jan", []byte("first"), t0)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	id2, err := s.Push("jan", []byte("second"), t0.Add(time.Second))
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	mb, err := s.Open("jan")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if mb.Count != 2 {
		t.Fatalf("Count = %d, want 2", mb.Count)
	}
	if mb.Messages[0].StableID != id1 || mb.Messages[1].StableID != id2 {
		t.Errorf("Open order = %v, want received-time order [%s %s]", mb.Messages, id1, id2)
	}
}

func TestMemStoreTotalSize(t *testing.T) {
	s := NewMemStore()
	if _, err := s.Push("jan", []byte("abcde"), time.Now()); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if _, err := s.Push("jan", []byte("xy"), time.Now()); err != nil {
		t.Fatalf("Push: %v", err)
	}

	mb, err := s.Open("jan")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if mb.TotalSize != 7 {
		t.Errorf("TotalSize = %d, want 7", mb.TotalSize)
	}
}

func TestMemStoreOpenOnlyReturnsOwnUser(t *testing.T) {
	s := NewMemStore()
	if _, err := s.Push("jan", []byte("for jan"), time.Now()); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if _, err := s.Push("mary", []byte("for mary"), time.Now()); err != nil {
		t.Fatalf("Push: %v", err)
	}

	mb, err := s.Open("jan")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if mb.Count != 1 {
		t.Fatalf("Count = %d, want 1", mb.Count)
	}
}

func TestMemStoreFetchUnknownID(t *testing.T) {
	s := NewMemStore()
	if _, err := s.Fetch("no-such-id"); err != ErrNoSuchMessage {
		t.Errorf("Fetch unknown id = %v, want ErrNoSuchMessage", err)
	}
}

func TestMemStoreCloseCommitsOnlyWhenTrue(t *testing.T) {
	s := NewMemStore()
	id, err := s.Push("jan", []byte("payload"), time.Now())
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	mb, err := s.Open("jan")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	mb.MarkDeleted(id)

	if err := s.Close(mb, false); err != nil {
		t.Fatalf("Close(false): %v", err)
	}
	if _, err := s.Fetch(id); err != nil {
		t.Errorf("expected message to survive an uncommitted Close, got %v", err)
	}

	mb2, err := s.Open("jan")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	mb2.MarkDeleted(id)
	if err := s.Close(mb2, true); err != nil {
		t.Fatalf("Close(true): %v", err)
	}
	if _, err := s.Fetch(id); err != ErrNoSuchMessage {
		t.Errorf("expected message removed after committed Close, got %v", err)
	}
}

func TestMailboxResetDeletions(t *testing.T) {
	mb := &Mailbox{User: "jan"}
	mb.MarkDeleted("a")
	if !mb.IsDeleted("a") {
		t.Fatal("expected a to be marked deleted")
	}
	mb.ResetDeletions()
	if mb.IsDeleted("a") {
		t.Error("expected ResetDeletions to clear deletion marks")
	}
}
