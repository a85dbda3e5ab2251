package reactor

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"time"
)

// Listener owns one accept loop (spec.md §4.D). Each accepted connection's
// transport handshake (TLS only) runs synchronously in the accept
// goroutine before the connection is handed to the loop, so the
// dispatch goroutine itself never blocks on a handshake.
type Listener struct {
	Name      string // "smtp", "pop3", "pop3s" — also the registry entry kind
	Address   string
	TLSConfig *tls.Config // non-nil only for the pop3s listener

	loop       *Loop
	newSession NewSessionFunc
	logger     *slog.Logger
}

// NewListener creates a listener that registers every accepted
// connection with loop under kind, using newSession to build its
// protocol session.
func NewListener(name, address string, tlsConfig *tls.Config, loop *Loop, newSession NewSessionFunc, logger *slog.Logger) *Listener {
	return &Listener{
		Name:       name,
		Address:    address,
		TLSConfig:  tlsConfig,
		loop:       loop,
		newSession: newSession,
		logger:     logger,
	}
}

// Run binds the listener and accepts connections until ctx is canceled.
func (l *Listener) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.Address)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	l.logger.Info("listener started", slog.String("address", l.Address), slog.String("proto", l.Name))

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			l.logger.Error("accept error", slog.String("proto", l.Name), slog.String("error", err.Error()))
			return err
		}
		l.accept(conn)
	}
}

func (l *Listener) accept(conn net.Conn) {
	if l.TLSConfig != nil {
		tlsConn := tls.Server(conn, l.TLSConfig)
		if err := tlsConn.HandshakeContext(context.Background()); err != nil {
			l.logger.Warn("tls handshake failed", slog.String("proto", l.Name), slog.String("error", err.Error()))
			_ = conn.Close()
			return
		}
		l.loop.Register(newTLSConn(tlsConn), l.Name, l.newSession)
		return
	}
	l.loop.Register(newPlainConn(conn), l.Name, l.newSession)
}
