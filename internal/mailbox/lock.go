// Package mailbox implements the in-memory, at-most-one-holder advisory
// lock over POP3 mailboxes (spec.md §4.H). All mutation happens on the
// single reactor goroutine; no extra synchronization is used, matching
// spec.md §5's single-thread-of-control model.
package mailbox

import (
	"fmt"
	"strings"

	"mailrelayd/internal/users"
)

// ErrAlreadyLocked is returned by Lock when another session already
// holds the named user's mailbox.
var ErrAlreadyLocked = fmt.Errorf("mailbox already locked")

// LockTable tracks which users currently have a live POP3 TRANSACTION
// session, backed by the same user table used for SMTP AUTH and POP3
// USER/PASS checks.
type LockTable struct {
	table  *users.Table
	locked map[string]bool
}

// NewLockTable builds a LockTable over the given credential table.
func NewLockTable(table *users.Table) *LockTable {
	return &LockTable{
		table:  table,
		locked: make(map[string]bool),
	}
}

// Has reports whether user exists in the underlying credential table.
func (lt *LockTable) Has(user string) bool {
	return lt.table.Has(user)
}

// Verify checks a user/password pair against the credential table.
func (lt *LockTable) Verify(user, pass string) bool {
	return lt.table.Verify(user, pass)
}

// IsLocked reports whether user's mailbox is currently held by a session.
func (lt *LockTable) IsLocked(user string) bool {
	return lt.locked[strings.ToLower(user)]
}

// Lock attempts to acquire the mailbox for user. It fails with
// ErrAlreadyLocked if another session already holds it.
func (lt *LockTable) Lock(user string) error {
	key := strings.ToLower(user)
	if lt.locked[key] {
		return ErrAlreadyLocked
	}
	lt.locked[key] = true
	return nil
}

// Unlock releases the mailbox for user. Unlocking a user that isn't
// locked is a no-op, so session teardown can call it unconditionally.
func (lt *LockTable) Unlock(user string) {
	delete(lt.locked, strings.ToLower(user))
}
