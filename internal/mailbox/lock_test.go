package mailbox

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mailrelayd/internal/users"
)

func buildTable(t *testing.T) *users.Table {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.csv")
	if err := os.WriteFile(path, []byte("jan\tsecret\nmary\thunter2\n"), 0600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	tbl, err := users.Load(path)
	if err != nil {
		t.Fatalf("users.Load: %v", err)
	}
	return tbl
}

func TestLockSingleHolder(t *testing.T) {
	lt := NewLockTable(buildTable(t))

	if err := lt.Lock("jan"); err != nil {
		t.Fatalf("first Lock should succeed, got %v", err)
	}
	if !lt.IsLocked("jan") {
		t.Error("expected jan to be locked")
	}

	err := lt.Lock("jan")
	if !errors.Is(err, ErrAlreadyLocked) {
		t.Errorf("second Lock = %v, want ErrAlreadyLocked", err)
	}
}

func TestLockIsCaseInsensitive(t *testing.T) {
	lt := NewLockTable(buildTable(t))

	if err := lt.Lock("Jan"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := lt.Lock("JAN"); !errors.Is(err, ErrAlreadyLocked) {
		t.Errorf("Lock on same user with different case = %v, want ErrAlreadyLocked", err)
	}
}

func TestUnlockAllowsRelock(t *testing.T) {
	lt := NewLockTable(buildTable(t))

	if err := lt.Lock("jan"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	lt.Unlock("jan")
	if lt.IsLocked("jan") {
		t.Error("expected jan to be unlocked after Unlock")
	}
	if err := lt.Lock("jan"); err != nil {
		t.Errorf("Lock after Unlock should succeed, got %v", err)
	}
}

func TestUnlockUnlockedUserIsNoop(t *testing.T) {
	lt := NewLockTable(buildTable(t))
	lt.Unlock("never-locked") // must not panic
	if lt.IsLocked("never-locked") {
		t.Error("expected never-locked user to remain unlocked")
	}
}

func TestLockIndependentPerUser(t *testing.T) {
	lt := NewLockTable(buildTable(t))

	if err := lt.Lock("jan"); err != nil {
		t.Fatalf("Lock jan: %v", err)
	}
	if err := lt.Lock("mary"); err != nil {
		t.Errorf("Lock mary should succeed independently of jan, got %v", err)
	}
}

func TestHasDelegatesToUserTable(t *testing.T) {
	lt := NewLockTable(buildTable(t))
	if !lt.Has("jan") {
		t.Error("expected jan to be present")
	}
	if lt.Has("nobody") {
		t.Error("expected nobody to be absent")
	}
}

func TestVerifyDelegatesToUserTable(t *testing.T) {
	lt := NewLockTable(buildTable(t))
	if !lt.Verify("jan", "secret") {
		t.Error("expected correct password to verify")
	}
	if lt.Verify("jan", "wrong") {
		t.Error("expected wrong password to fail")
	}
}
