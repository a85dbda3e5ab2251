package smtp

import (
	"log/slog"
	"strconv"
	"strings"

	"mailrelayd/internal/reactor"
)

// connSession adapts a Session (the command state machine in command.go)
// to reactor.Session, so the event loop can drive it the same way it
// drives a forwarder Job. It owns the one piece of state dispatch()
// doesn't: whether the current line is a command or a DATA-phase body
// line.
type connSession struct {
	sess   *Session
	conn   reactor.Conn
	logger *slog.Logger
}

// NewSessionFunc builds the reactor.NewSessionFunc for the SMTP listener,
// closing over the shared Deps so each accepted connection gets its own
// Session.
func NewSessionFunc(deps Deps) reactor.NewSessionFunc {
	return func(conn reactor.Conn, remoteAddr string) reactor.Session {
		return &connSession{
			sess:   newSession(remoteAddr, deps),
			conn:   conn,
			logger: deps.Logger.With(slog.String("proto", "smtp"), slog.String("remote", remoteAddr)),
		}
	}
}

func (c *connSession) OnOpen() {
	c.sess.Deps.Metrics.ConnectionOpened("smtp")
	c.reply(Result{Code: 220, Line: c.sess.Deps.Hostname + " SMTP Relay ready"})
}

func (c *connSession) OnLine(line reactor.Line) reactor.Action {
	text := strings.TrimRight(string(line.Text), "\r")

	switch c.sess.state {
	case StateData:
		return c.onDataLine(text)
	case StateAuth:
		result := c.sess.continueAuth(text)
		c.reply(result)
		return reactor.Continue
	case StateRcptPending:
		// A resolve is already in flight; spec.md has no pipelining
		// support, so a command arriving now is out of sequence.
		c.reply(Result{Code: 503, Line: "Bad sequence of commands"})
		return reactor.Continue
	default:
		if rcptPattern.MatchString(text) {
			return c.onRcptLine(rcptPattern.FindStringSubmatch(text)[1])
		}
		result := c.sess.dispatch(text)
		c.sess.Deps.Metrics.CommandProcessed("smtp", commandVerb(text))
		c.reply(result)
		if c.sess.state == StateQuit {
			return reactor.Quit
		}
		return reactor.Continue
	}
}

// onRcptLine handles RCPT TO outside dispatch because a non-local
// domain's verdict may need a DNS resolve, which must not run on the
// dispatch goroutine (spec.md §5). The synchronous part (prepareRcpt)
// runs inline as usual; a pending non-local domain is resolved on its
// own goroutine and the reply is applied back via conn.Schedule, the
// same pattern the forwarder uses for its own dial.
func (c *connSession) onRcptLine(addr string) reactor.Action {
	c.sess.Deps.Metrics.CommandProcessed("smtp", "RCPT")
	verdict := c.sess.prepareRcpt(addr)
	if verdict.Result != nil {
		c.reply(*verdict.Result)
		return reactor.Continue
	}

	domain := verdict.Domain
	resolver := c.sess.Deps.Resolver
	go func() {
		err := resolver(domain)
		c.conn.Schedule(func() {
			result := c.sess.resolveRcpt(err)
			if result.Code == 0 {
				return
			}
			c.reply(result)
		})
	}()
	return reactor.Continue
}

// onDataLine accumulates one DATA-phase line, or — on the lone "."
// terminator — attempts delivery/forwarding and replies per spec.md
// §4.E's end-of-DATA rule.
func (c *connSession) onDataLine(text string) reactor.Action {
	if text == "." {
		result := c.deliver()
		c.sess.reset()
		c.reply(result)
		return reactor.Continue
	}
	c.sess.body.Append(text)
	return reactor.Continue
}

func (c *connSession) deliver() Result {
	s := c.sess
	if s.local {
		// prepareRcpt only marks a recipient local after finding its '@',
		// and the mailbox is keyed by the local part alone.
		user := s.recipient[:strings.LastIndexByte(s.recipient, '@')]
		if err := s.Deps.Deliver(user, s.body); err != nil {
			c.logger.Error("local delivery failed", slog.String("error", err.Error()))
			return Result{Code: 450, Line: "Requested action not taken: mailbox unavailable"}
		}
		s.Deps.Metrics.MessageDelivered(s.body.Size())
		return Result{Code: 250, Line: "accepted and delivered"}
	}

	if err := s.Deps.Forward(s.sender, s.recipient, s.body, true); err != nil {
		c.logger.Error("forward handoff failed", slog.String("error", err.Error()))
		return Result{Code: 250, Line: "accepted but forward failed"}
	}
	return Result{Code: 250, Line: "accepted and forwarded"}
}

func (c *connSession) Close() {
	c.sess.Deps.Metrics.ConnectionClosed("smtp")
}

func (c *connSession) reply(r Result) {
	code := strconv.Itoa(r.Code)
	if len(r.Lines) > 0 {
		for i, l := range r.Lines {
			sep := byte('-')
			if i == len(r.Lines)-1 {
				sep = ' '
			}
			c.write(code + string(sep) + l + "\r\n")
		}
		return
	}
	c.write(code + " " + r.Line + "\r\n")
}

func (c *connSession) write(s string) {
	_, _ = c.conn.Write([]byte(s))
}

func commandVerb(line string) string {
	if i := strings.IndexByte(line, ' '); i >= 0 {
		return strings.ToUpper(line[:i])
	}
	return strings.ToUpper(line)
}
