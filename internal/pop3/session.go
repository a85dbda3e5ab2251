package pop3

import (
	"log/slog"
	"strings"

	"mailrelayd/internal/reactor"
)

// connSession adapts a Session (the command state machine in command.go)
// to reactor.Session.
type connSession struct {
	sess   *Session
	conn   reactor.Conn
	logger *slog.Logger
}

// NewSessionFunc builds the reactor.NewSessionFunc for the POP3 and
// POP3S listeners, closing over the shared Deps so each accepted
// connection gets its own Session.
func NewSessionFunc(deps Deps) reactor.NewSessionFunc {
	return func(conn reactor.Conn, remoteAddr string) reactor.Session {
		return &connSession{
			sess:   newSession(deps),
			conn:   conn,
			logger: deps.Logger.With(slog.String("proto", "pop3"), slog.String("remote", remoteAddr)),
		}
	}
}

func (c *connSession) OnOpen() {
	c.sess.Deps.Metrics.ConnectionOpened("pop3")
	c.write("+OK " + c.sess.Deps.Hostname + " POP3-Server, Enter user\r\n")
}

func (c *connSession) OnLine(line reactor.Line) reactor.Action {
	text := strings.TrimRight(string(line.Text), "\r")
	result := c.sess.dispatch(text)
	c.sess.Deps.Metrics.CommandProcessed("pop3", commandVerb(text))
	c.reply(result)
	if result.Terminate {
		return reactor.Quit
	}
	return reactor.Continue
}

func (c *connSession) reply(r Result) {
	status := "-ERR"
	if r.OK {
		status = "+OK"
	}
	if r.Line != "" {
		c.write(status + " " + r.Line + "\r\n")
	} else {
		c.write(status + "\r\n")
	}

	switch {
	case r.Body != nil:
		c.write(string(r.Body))
		c.write("\r\n.\r\n")
	case r.Lines != nil:
		for _, l := range r.Lines {
			if strings.HasPrefix(l, ".") {
				c.write(".")
			}
			c.write(l + "\r\n")
		}
		c.write(".\r\n")
	}
}

func (c *connSession) Close() {
	c.sess.teardown()
	c.sess.Deps.Metrics.ConnectionClosed("pop3")
}

func (c *connSession) write(s string) {
	_, _ = c.conn.Write([]byte(s))
}

func commandVerb(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}
