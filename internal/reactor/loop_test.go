package reactor

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"
)

// echoSession is a minimal Session for exercising the loop: it echoes
// each line back unchanged, and quits on "QUIT".
type echoSession struct {
	conn Conn
}

func (s *echoSession) OnOpen() {
	_, _ = s.conn.Write([]byte("220 ready\n"))
}

func (s *echoSession) OnLine(line Line) Action {
	text := string(line.Text)
	if text == "QUIT" {
		_, _ = s.conn.Write([]byte("221 bye\n"))
		return Quit
	}
	_, _ = s.conn.Write(append([]byte(text), '\n'))
	return Continue
}

func (s *echoSession) Close() {}

func TestLoopEchoAndQuit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loop := New(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	serverSide, clientSide := net.Pipe()
	loop.Register(newPlainConn(serverSide), "test", func(conn Conn, remote string) Session {
		return &echoSession{conn: conn}
	})

	reader := bufReader(clientSide)

	line := mustReadLine(t, reader)
	if line != "220 ready" {
		t.Fatalf("greeting = %q, want '220 ready'", line)
	}

	if _, err := clientSide.Write([]byte("hello\n")); err != nil {
		t.Fatal(err)
	}
	line = mustReadLine(t, reader)
	if line != "hello" {
		t.Fatalf("echo = %q, want 'hello'", line)
	}

	if _, err := clientSide.Write([]byte("QUIT\n")); err != nil {
		t.Fatal(err)
	}
	line = mustReadLine(t, reader)
	if line != "221 bye" {
		t.Fatalf("quit reply = %q, want '221 bye'", line)
	}

	// After QUIT the server side should be closed; further reads should
	// eventually fail rather than hang.
	clientSide.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 8)
	if _, err := clientSide.Read(buf); err == nil {
		t.Fatal("expected read error after server-side teardown")
	}
}

type lineReader struct {
	conn net.Conn
	buf  []byte
}

func bufReader(conn net.Conn) *lineReader {
	return &lineReader{conn: conn}
}

func mustReadLine(t *testing.T, r *lineReader) string {
	t.Helper()
	r.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		for i, b := range r.buf {
			if b == '\n' {
				line := string(r.buf[:i])
				r.buf = r.buf[i+1:]
				return line
			}
		}
		chunk := make([]byte, 256)
		n, err := r.conn.Read(chunk)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		r.buf = append(r.buf, chunk[:n]...)
	}
}
