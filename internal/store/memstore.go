package store

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"
)

type memMessage struct {
	id       string
	user     string
	body     []byte
	received time.Time
}

// MemStore is a process-local, in-memory Store used by tests and by the
// standalone "-d :memory:" operating mode. It holds no locks of its own
// — correctness relies on the reactor's single-threaded access, per
// spec.md §5.
type MemStore struct {
	nextID   atomic.Uint64
	messages map[string]*memMessage
}

// NewMemStore builds an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{messages: make(map[string]*memMessage)}
}

func (s *MemStore) Push(user string, body []byte, received time.Time) (string, error) {
	id := fmt.Sprintf("%018d", s.nextID.Add(1))
	cp := make([]byte, len(body))
	copy(cp, body)
	s.messages[id] = &memMessage{id: id, user: user, body: cp, received: received}
	return id, nil
}

func (s *MemStore) Open(user string) (*Mailbox, error) {
	var matches []*memMessage
	for _, m := range s.messages {
		if m.user == user {
			matches = append(matches, m)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].received.Equal(matches[j].received) {
			return matches[i].id < matches[j].id
		}
		return matches[i].received.Before(matches[j].received)
	})

	mb := &Mailbox{User: user}
	for i, m := range matches {
		size := int64(len(m.body))
		mb.Messages = append(mb.Messages, MessageSummary{
			Seq:      i + 1,
			StableID: m.id,
			Size:     size,
		})
		mb.Count++
		mb.TotalSize += size
	}
	return mb, nil
}

func (s *MemStore) Fetch(id string) ([]byte, error) {
	m, ok := s.messages[id]
	if !ok {
		return nil, ErrNoSuchMessage
	}
	out := make([]byte, len(m.body))
	copy(out, m.body)
	return out, nil
}

func (s *MemStore) Delete(id string) error {
	if _, ok := s.messages[id]; !ok {
		return ErrNoSuchMessage
	}
	delete(s.messages, id)
	return nil
}

func (s *MemStore) Close(mb *Mailbox, commit bool) error {
	if !commit {
		return nil
	}
	for _, msg := range mb.Messages {
		if mb.IsDeleted(msg.StableID) {
			if err := s.Delete(msg.StableID); err != nil && err != ErrNoSuchMessage {
				return err
			}
		}
	}
	return nil
}
