// Package reactor implements the single-threaded cooperative event loop
// of spec.md §4.C: one dispatch goroutine is the sole mutator of session
// and registry state, fed by a fan-in channel of byte events from dumb,
// non-blocking per-socket reader goroutines. No two Session callbacks
// ever run concurrently, matching spec.md §5's ordering guarantee,
// without needing direct epoll/kqueue access.
package reactor

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Action is a Session callback's verdict on what the loop should do next.
type Action int

const (
	Continue Action = iota
	Quit
)

// Session is the capability interface implemented once per protocol
// flavor (SMTP server, POP3 server, outbound forwarder) per spec.md §9's
// "small capability interface (accept, on_line, destroy)".
type Session interface {
	// OnLine handles one logical line and returns whether the session
	// should continue or terminate. Implementations write replies
	// directly to the conn passed at construction time.
	OnLine(line Line) Action
	// OnOpen is called once, immediately after registration, so a
	// session can write its greeting (SMTP "220 ...", POP3 "+OK ...").
	OnOpen()
	// Close releases session-owned resources (mailbox locks, forward
	// job bookkeeping). Called exactly once, whatever the reason for
	// teardown, matching spec.md §8's registry-entry invariant.
	Close()
}

// NewSessionFunc constructs a Session bound to conn and remoteAddr. The
// loop calls it exactly once per registered connection, from the
// dispatch goroutine, so constructors may safely touch shared state
// (user table, mailbox lock table, mail store) without synchronization.
type NewSessionFunc func(conn Conn, remoteAddr string) Session

// Conn is the write-and-close surface a Session gets to use. It is the
// same lineConn the loop reads from, narrowed to what session code needs,
// plus Schedule so a session can run blocking work (a DNS lookup, say) on
// its own goroutine and apply the result back on the dispatch goroutine
// instead of blocking it directly — spec.md §5's "must not itself block
// on I/O" applies to every Session callback, not just OnLine on reads.
type Conn interface {
	Write(p []byte) (int, error)
	RemoteAddr() string
	Schedule(fn func())
}

type eventKind int

const (
	evAccept eventKind = iota
	evLine
	evClosed
	evFunc
)

type event struct {
	kind eventKind
	id   uint64

	conn       lineConn
	kindName   string
	newSession NewSessionFunc
	line       Line
	fn         func()
}

// Loop is the single-threaded event loop. Zero value is not usable; use
// New.
type Loop struct {
	logger   *slog.Logger
	events   chan event
	nextID   atomic.Uint64
	registry *registry
}

// New creates a Loop with a fan-in channel sized for modest connection
// bursts; the channel is never the bottleneck since reader goroutines
// block on it only briefly between Read calls.
func New(logger *slog.Logger) *Loop {
	return &Loop{
		logger:   logger,
		events:   make(chan event, 256),
		registry: newRegistry(),
	}
}

// Register enqueues a newly accepted (or dialed) connection for
// registration on the dispatch goroutine. Safe to call from any
// goroutine — in particular, listener accept loops and the forwarder.
func (l *Loop) Register(conn lineConn, kindName string, newSession NewSessionFunc) uint64 {
	id := l.nextID.Add(1)
	l.events <- event{kind: evAccept, id: id, conn: conn, kindName: kindName, newSession: newSession}
	return id
}

// Run is the event loop itself: block on the fan-in channel, dispatch
// each event to its handler, repeat. Returns when ctx is canceled.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return
		case ev := <-l.events:
			l.handle(ev)
		}
	}
}

func (l *Loop) handle(ev event) {
	switch ev.kind {
	case evAccept:
		l.handleAccept(ev)
	case evLine:
		l.handleLine(ev)
	case evClosed:
		l.handleClosed(ev)
	case evFunc:
		l.handleFunc(ev)
	}
}

func (l *Loop) handleAccept(ev event) {
	conn := boundConn{lineConn: ev.conn, loop: l, id: ev.id}
	sess := ev.newSession(conn, ev.conn.RemoteAddr())
	e := &entry{id: ev.id, kind: ev.kindName, conn: ev.conn, session: sess}
	l.registry.register(e)
	sess.OnOpen()
	go l.readLoop(ev.id, ev.conn)
}

// handleFunc runs a callback scheduled by Conn.Schedule on the dispatch
// goroutine. The registry-liveness check mirrors handleLine's: a
// connection may have been torn down while the scheduled work (a DNS
// lookup, typically) was in flight.
func (l *Loop) handleFunc(ev event) {
	if l.registry.get(ev.id) == nil {
		return
	}
	ev.fn()
}

func (l *Loop) handleLine(ev event) {
	e := l.registry.get(ev.id)
	if e == nil {
		// Entry already torn down (e.g. a closed event raced this line);
		// nothing left to dispatch to.
		return
	}
	if e.session.OnLine(ev.line) == Quit {
		l.teardown(ev.id, e)
	}
}

func (l *Loop) handleClosed(ev event) {
	e := l.registry.remove(ev.id)
	if e == nil {
		return
	}
	e.session.Close()
}

func (l *Loop) teardown(id uint64, e *entry) {
	l.registry.remove(id)
	_ = e.conn.CloseGraceful()
	e.session.Close()
}

// shutdown tears down every live entry on context cancellation.
func (l *Loop) shutdown() {
	for _, e := range l.registry.iter() {
		_ = e.conn.CloseGraceful()
		e.session.Close()
	}
}

// readLoop is the non-blocking reader goroutine of spec.md §9's Go
// realization: it only reads bytes and frames lines, never touches
// session or registry state. Framing happens here (not in the dispatch
// goroutine) because LineFramer is conn-local buffering state, not
// shared state — no synchronization is needed for it to live here.
func (l *Loop) readLoop(id uint64, conn lineConn) {
	var framer LineFramer
	buf := make([]byte, 16*1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			for _, line := range framer.Feed(buf[:n]) {
				l.events <- event{kind: evLine, id: id, line: line}
			}
		}
		if err != nil {
			l.events <- event{kind: evClosed, id: id}
			return
		}
	}
}
