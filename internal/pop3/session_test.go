package pop3

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"mailrelayd/internal/mailbox"
	"mailrelayd/internal/metrics"
	"mailrelayd/internal/reactor"
	"mailrelayd/internal/store"
)

type pipeConn struct{ net.Conn }

func (p pipeConn) CloseGraceful() error { return p.Close() }
func (p pipeConn) RemoteAddr() string   { return "pipe" }

func TestPOP3RoundTrip(t *testing.T) {
	tbl := buildUserTable(t, "jan\tsecret\n")
	locks := mailbox.NewLockTable(tbl)
	st := store.NewMemStore()
	st.Push("jan", []byte("hello world\r\n"), time.Now())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps := Deps{Hostname: "myhost", Locks: locks, Store: st, Metrics: &metrics.NoopCollector{}, Logger: logger}

	loop := reactor.New(logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	serverSide, clientSide := net.Pipe()
	loop.Register(pipeConn{serverSide}, "pop3", NewSessionFunc(deps))

	r := bufio.NewReader(clientSide)
	mustLine := func() string {
		clientSide.SetReadDeadline(time.Now().Add(2 * time.Second))
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		return line
	}

	if got := mustLine(); got[:3] != "+OK" {
		t.Fatalf("greeting = %q, want +OK prefix", got)
	}

	clientSide.Write([]byte("USER jan\r\n"))
	if got := mustLine(); got[:3] != "+OK" {
		t.Fatalf("USER reply = %q", got)
	}

	clientSide.Write([]byte("PASS secret\r\n"))
	if got := mustLine(); got[:3] != "+OK" {
		t.Fatalf("PASS reply = %q", got)
	}

	clientSide.Write([]byte("RETR 1\r\n"))
	if got := mustLine(); got[:3] != "+OK" {
		t.Fatalf("RETR status = %q", got)
	}
	body := mustLine()
	if body != "hello world\r\n" {
		t.Fatalf("RETR body = %q", body)
	}
	// The terminator is written as a fixed "\r\n.\r\n" regardless of
	// whether the body's last line already ended in CRLF, per spec.md
	// §4.F — so a body ending in CRLF reads back as one blank line
	// before the ".".
	blank := mustLine()
	if blank != "\r\n" {
		t.Fatalf("blank line before terminator = %q", blank)
	}
	term := mustLine()
	if term != ".\r\n" {
		t.Fatalf("RETR terminator = %q", term)
	}

	clientSide.Write([]byte("QUIT\r\n"))
	if got := mustLine(); got[:3] != "+OK" {
		t.Fatalf("QUIT reply = %q", got)
	}
}
