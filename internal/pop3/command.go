// Package pop3 implements spec.md §4.F's POP3 server state machine: a
// per-connection command parser mediating between an authenticated
// session and the mailbox lock table and store, driven by the shared
// reactor event loop.
package pop3

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"mailrelayd/internal/store"
)

// State is a position in spec.md §4.F's state table.
type State int

const (
	StateAuthorization State = iota
	StateTransaction
	StateUpdate
)

func (s State) String() string {
	switch s {
	case StateAuthorization:
		return "AUTHORIZATION"
	case StateTransaction:
		return "TRANSACTION"
	case StateUpdate:
		return "UPDATE"
	default:
		return "UNKNOWN"
	}
}

// Result is a command handler's reply. Lines, when non-nil, are written
// after the status line and terminated by a lone ".". Terminate marks
// replies that must end the session regardless of status (lock
// conflict, QUIT).
type Result struct {
	OK        bool
	Line      string
	Lines     []string
	Body      []byte // RETR only: raw message bytes, terminated with a leading-CRLF "."
	Terminate bool
}

// Session holds spec.md §3's "POP3 server session" fields.
type Session struct {
	Deps Deps

	state     State
	candidate string // USER argument, pending PASS
	user      string // authenticated username
	mailbox   *store.Mailbox
	committed bool
}

func newSession(deps Deps) *Session {
	return &Session{Deps: deps, state: StateAuthorization}
}

// authenticated reports whether PASS has succeeded and a mailbox is open.
func (s *Session) authenticated() bool {
	return s.state == StateTransaction && s.mailbox != nil
}

func parseCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	fields := strings.SplitN(line, " ", 2)
	name := strings.ToUpper(fields[0])
	arg := ""
	if len(fields) == 2 {
		arg = strings.TrimSpace(fields[1])
	}
	return name, arg
}

// dispatch routes one command line to its handler, matching spec.md
// §4.F's AUTHORIZATION/TRANSACTION command tables.
func (s *Session) dispatch(line string) Result {
	name, arg := parseCommand(line)
	if name == "" {
		return Result{OK: false, Line: "Unknown command"}
	}

	switch s.state {
	case StateAuthorization:
		switch name {
		case "USER":
			return s.handleUser(arg)
		case "PASS":
			return s.handlePass(arg)
		case "NOOP":
			return Result{OK: true}
		case "QUIT":
			return Result{OK: true, Line: "Bye", Terminate: true}
		default:
			return Result{OK: false, Line: "Command not valid in this state"}
		}
	case StateTransaction:
		switch name {
		case "STAT":
			return s.handleStat()
		case "LIST":
			return s.handleList(arg)
		case "UIDL":
			return s.handleUidl(arg)
		case "RETR":
			return s.handleRetr(arg)
		case "DELE":
			return s.handleDele(arg)
		case "NOOP":
			return Result{OK: true}
		case "RSET":
			s.mailbox.ResetDeletions()
			return Result{OK: true}
		case "QUIT":
			return s.handleQuit()
		default:
			return Result{OK: false, Line: "Command not valid in this state"}
		}
	default:
		return Result{OK: false, Line: "Command not valid in this state"}
	}
}

func (s *Session) handleUser(name string) Result {
	if name == "" {
		return Result{OK: false, Line: "Missing username"}
	}
	if !s.Deps.Locks.Has(name) {
		return Result{OK: false, Line: "No such user"}
	}
	s.candidate = name
	return Result{OK: true, Line: "User accepted, send PASS"}
}

func (s *Session) handlePass(pw string) Result {
	if s.candidate == "" {
		return Result{OK: false, Line: "USER required first"}
	}
	user := s.candidate
	s.candidate = ""

	if !s.Deps.Locks.Verify(user, pw) {
		s.Deps.Metrics.AuthAttempt(false)
		return Result{OK: false, Line: "Authentication failed"}
	}
	s.Deps.Metrics.AuthAttempt(true)

	if err := s.Deps.Locks.Lock(user); err != nil {
		s.Deps.Metrics.LockContention()
		return Result{OK: false, Line: "Cannot lock mailbox", Terminate: true}
	}

	mb, err := s.Deps.Store.Open(user)
	if err != nil {
		s.Deps.Locks.Unlock(user)
		return Result{OK: false, Line: "Cannot open mailbox", Terminate: true}
	}

	s.user = user
	s.mailbox = mb
	s.state = StateTransaction
	return Result{OK: true, Line: "Mailbox open"}
}

func (s *Session) handleStat() Result {
	count, size := s.liveCounts()
	return Result{OK: true, Line: fmt.Sprintf("%d %d", count, size)}
}

func (s *Session) liveCounts() (count int, size int64) {
	for _, m := range s.mailbox.Messages {
		if !s.mailbox.IsDeleted(m.StableID) {
			count++
			size += m.Size
		}
	}
	return count, size
}

func (s *Session) handleList(arg string) Result {
	if arg == "" {
		count, size := s.liveCounts()
		lines := make([]string, 0, count)
		for _, m := range s.mailbox.Messages {
			if s.mailbox.IsDeleted(m.StableID) {
				continue
			}
			lines = append(lines, fmt.Sprintf("%d %d", m.Seq, m.Size))
		}
		return Result{OK: true, Line: fmt.Sprintf("%d messages (%d Octets)", count, size), Lines: lines}
	}

	m, err := s.resolveSeq(arg)
	if err != nil {
		return Result{OK: false, Line: err.Error()}
	}
	return Result{OK: true, Line: fmt.Sprintf("%d %d", m.Seq, m.Size)}
}

func (s *Session) handleUidl(arg string) Result {
	if arg == "" {
		lines := make([]string, 0, len(s.mailbox.Messages))
		for _, m := range s.mailbox.Messages {
			if s.mailbox.IsDeleted(m.StableID) {
				continue
			}
			lines = append(lines, fmt.Sprintf("%d %s", m.Seq, uidOf(m.StableID)))
		}
		return Result{OK: true, Line: "unique-id listing follows", Lines: lines}
	}

	m, err := s.resolveSeq(arg)
	if err != nil {
		return Result{OK: false, Line: err.Error()}
	}
	return Result{OK: true, Line: fmt.Sprintf("%d %s", m.Seq, uidOf(m.StableID))}
}

// uidOf renders a stable id as the 18-digit zero-padded decimal UID
// spec.md §4.F requires. FileStore's stable ids are "<user>/<seq>" and
// MemStore's are the bare sequence number, in both cases a zero-padded
// decimal string; the digits after any "/" are parsed back out and
// re-padded to the width POP3 UIDL expects.
func uidOf(stableID string) string {
	i := strings.LastIndexByte(stableID, '/')
	digits := stableID
	if i >= 0 {
		digits = stableID[i+1:]
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return fmt.Sprintf("%018s", digits)
	}
	return fmt.Sprintf("%018d", n)
}

func (s *Session) resolveSeq(arg string) (store.MessageSummary, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(s.mailbox.Messages) {
		return store.MessageSummary{}, fmt.Errorf("no such message")
	}
	m := s.mailbox.Messages[n-1]
	if s.mailbox.IsDeleted(m.StableID) {
		return store.MessageSummary{}, fmt.Errorf("message deleted")
	}
	return m, nil
}

func (s *Session) handleRetr(arg string) Result {
	m, err := s.resolveSeq(arg)
	if err != nil {
		return Result{OK: false, Line: err.Error()}
	}
	body, err := s.Deps.Store.Fetch(m.StableID)
	if err != nil {
		return Result{OK: false, Line: "Error reading message"}
	}
	s.Deps.Metrics.MessageRetrieved(m.Size)
	return Result{OK: true, Line: fmt.Sprintf("%d Octets", m.Size), Body: body}
}

func (s *Session) handleDele(arg string) Result {
	m, err := s.resolveSeq(arg)
	if err != nil {
		return Result{OK: false, Line: err.Error()}
	}
	s.mailbox.MarkDeleted(m.StableID)
	s.Deps.Metrics.MessageDeleted()
	return Result{OK: true, Line: fmt.Sprintf("Message %d deleted", m.Seq)}
}

func (s *Session) handleQuit() Result {
	if err := s.Deps.Store.Close(s.mailbox, true); err != nil {
		s.Deps.Logger.Error("mailbox commit failed", slog.String("user", s.user), slog.String("error", err.Error()))
	} else {
		s.committed = true
	}
	s.Deps.Locks.Unlock(s.user)
	s.state = StateUpdate
	return Result{OK: true, Line: "Bye", Terminate: true}
}

// teardown releases any held mailbox lock without committing deletions,
// for sessions that end without QUIT (peer close, protocol error).
func (s *Session) teardown() {
	if s.mailbox == nil || s.committed {
		return
	}
	_ = s.Deps.Store.Close(s.mailbox, false)
	s.Deps.Locks.Unlock(s.user)
	s.committed = true
}
