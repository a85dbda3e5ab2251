// Package store defines the narrow push/open/fetch/delete/close contract
// spec.md §6 requires of the mail store, and ships two implementations:
// a Maildir-like on-disk filestore for real deployments and an in-memory
// store for tests. spec.md treats the persistent store as an opaque
// external collaborator (grounded on both teacher repos' consumption of
// github.com/infodancer/msgstore's DeliveryAgent/MessageStore shape)
// without prescribing its internals, so neither implementation need be
// elaborate.
package store

import (
	"errors"
	"time"
)

// ErrNoSuchMessage is returned by Fetch/Delete for an unknown stable id.
var ErrNoSuchMessage = errors.New("store: no such message")

// MessageSummary describes one stored message as handed back by Open,
// matching spec.md §6's {msg_seq_in_session, stable_id, size} triple.
type MessageSummary struct {
	Seq      int    // 1-based position within this Open's snapshot
	StableID string // storage-assigned id, stable across sessions
	Size     int64
}

// Mailbox is the per-session snapshot returned by Open: a consistent
// listing of one user's messages as of the open call, plus running
// totals. The snapshot does not change as other sessions push mail,
// matching POP3's requirement that message numbers stay stable for the
// duration of one TRANSACTION.
type Mailbox struct {
	User       string
	Count      int
	TotalSize  int64
	Messages   []MessageSummary
	deleted    map[string]bool
}

// IsDeleted reports whether a message (by stable id) has been marked
// deleted within this session's view. Deletion is buffered here and
// only committed to storage by Close(commit=true) — see spec.md §4.F.
func (m *Mailbox) IsDeleted(id string) bool {
	return m.deleted[id]
}

// MarkDeleted buffers a deletion for id within this session's view.
func (m *Mailbox) MarkDeleted(id string) {
	if m.deleted == nil {
		m.deleted = make(map[string]bool)
	}
	m.deleted[id] = true
}

// ResetDeletions clears all buffered deletion marks (POP3 RSET).
func (m *Mailbox) ResetDeletions() {
	m.deleted = make(map[string]bool)
}

// Store is the persistent mailbox engine the SMTP and POP3 state
// machines push to and read from. Implementations must be safe against
// sequential (not concurrent — the reactor never calls them
// concurrently) open/push/close cycles from one caller.
type Store interface {
	// Push appends a delivered message to user's mailbox and returns its
	// stable id.
	Push(user string, body []byte, received time.Time) (string, error)

	// Open returns a snapshot of user's mailbox for one POP3 TRANSACTION.
	Open(user string) (*Mailbox, error)

	// Fetch returns the raw bytes of the message identified by stable id.
	Fetch(id string) ([]byte, error)

	// Delete removes the message identified by stable id from storage.
	// Only called by Close when committing a TRANSACTION's deletions.
	Delete(id string) error

	// Close ends a Mailbox snapshot. When commit is true, every message
	// marked deleted in mb's view is removed from storage; when false
	// (peer close, error), nothing is removed — spec.md §4.F/§8.
	Close(mb *Mailbox, commit bool) error
}
