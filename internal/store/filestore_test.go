package store

import (
	"testing"
	"time"
)

func TestFileStorePushSequenceNumbering(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	id1, err := fs.Push("jan", []byte("one"), time.Now())
	if err != nil {
		t.Fatalf("Push 1: %v", err)
	}
	id2, err := fs.Push("jan", []byte("two"), time.Now())
	if err != nil {
		t.Fatalf("Push 2: %v", err)
	}
	if id1 >= id2 {
		t.Errorf("expected strictly increasing ids, got %q then %q", id1, id2)
	}

	mb, err := fs.Open("jan")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if mb.Count != 2 {
		t.Fatalf("Count = %d, want 2", mb.Count)
	}
	if mb.Messages[0].StableID != id1 || mb.Messages[1].StableID != id2 {
		t.Errorf("Open order = %v, want [%s %s]", mb.Messages, id1, id2)
	}
}

func TestFileStoreTotalSize(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if _, err := fs.Push("jan", []byte("hello"), time.Now()); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if _, err := fs.Push("jan", []byte("world!!"), time.Now()); err != nil {
		t.Fatalf("Push: %v", err)
	}

	mb, err := fs.Open("jan")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	want := int64(len("hello") + len("world!!"))
	if mb.TotalSize != want {
		t.Errorf("TotalSize = %d, want %d", mb.TotalSize, want)
	}
}

func TestFileStoreUsernameIsCaseInsensitive(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := fs.Push("Jan", []byte("hi"), time.Now()); err != nil {
		t.Fatalf("Push: %v", err)
	}
	mb, err := fs.Open("JAN")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if mb.Count != 1 {
		t.Errorf("Count = %d, want 1 (case-insensitive username)", mb.Count)
	}
}

func TestFileStoreFetchAndDelete(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	id, err := fs.Push("jan", []byte("payload"), time.Now())
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	body, err := fs.Fetch(id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "payload" {
		t.Errorf("Fetch = %q, want %q", body, "payload")
	}

	if err := fs.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := fs.Fetch(id); err != ErrNoSuchMessage {
		t.Errorf("Fetch after Delete = %v, want ErrNoSuchMessage", err)
	}
}

func TestFileStoreCloseCommitsOnlyWhenTrue(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	id, err := fs.Push("jan", []byte("payload"), time.Now())
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	mb, err := fs.Open("jan")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	mb.MarkDeleted(id)

	// Close without commit (e.g. a peer disconnect, or any session end
	// without QUIT) must leave the message untouched.
	if err := fs.Close(mb, false); err != nil {
		t.Fatalf("Close(false): %v", err)
	}
	if _, err := fs.Fetch(id); err != nil {
		t.Errorf("expected message to survive an uncommitted Close, got %v", err)
	}

	mb2, err := fs.Open("jan")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	mb2.MarkDeleted(id)
	if err := fs.Close(mb2, true); err != nil {
		t.Fatalf("Close(true): %v", err)
	}
	if _, err := fs.Fetch(id); err != ErrNoSuchMessage {
		t.Errorf("expected message removed after committed Close, got %v", err)
	}
}

func TestFileStoreHighestSeqSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	fs1, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := fs1.Push("jan", []byte("one"), time.Now()); err != nil {
		t.Fatalf("Push: %v", err)
	}
	id1, err := fs1.Push("jan", []byte("two"), time.Now())
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	fs2, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("re-opening FileStore: %v", err)
	}
	id3, err := fs2.Push("jan", []byte("three"), time.Now())
	if err != nil {
		t.Fatalf("Push after reopen: %v", err)
	}
	if id3 <= id1 {
		t.Errorf("expected sequence to continue past the prior store's highest id %q, got %q", id1, id3)
	}
}
