// Package forwarder implements spec.md §4.G's outbound SMTP client: one
// Job per non-local recipient handed off from the SMTP server, driven
// entirely by replies arriving over the shared reactor loop — never a
// blocking subroutine.
package forwarder

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"mailrelayd/internal/dnscheck"
	"mailrelayd/internal/mailmsg"
	"mailrelayd/internal/metrics"
	"mailrelayd/internal/reactor"
)

// maxRetries caps the per-command retry count. spec.md §9 notes the
// source increments a retry counter but never consults it against a
// cap; this is one of the latent bugs the rewrite actually fixes rather
// than pins.
const maxRetries = 3

// state is a forward job's position in spec.md §4.G's state table.
type state int

const (
	stateNew state = iota
	stateHelo
	stateMail
	stateRcpt
	stateData
	stateSend
	stateQuit
)

// Forwarder holds everything a Job needs to dial and enqueue: the
// shared event loop, this host's identity, and the fixed relay (if
// configured).
type Forwarder struct {
	Loop      *reactor.Loop
	Hostname  string
	Relayhost string
	Logger    *slog.Logger
	Metrics   metrics.Collector
}

// Job is one outbound delivery attempt (spec.md §3's "Forward job").
type Job struct {
	fwd    *Forwarder
	logger *slog.Logger

	sender          string
	recipient       string
	body            *mailmsg.Body
	bounceOnFailure bool

	conn    reactor.Conn
	state   state
	retries int

	lastReply string
}

// Enqueue hands a non-local recipient off to the forwarder. spec.md §5
// forbids a session callback from blocking on I/O, and both the domain
// resolution and the TCP dial below are blocking calls, so the actual
// work runs on its own goroutine (the same shape as Listener.accept's
// TLS handshake running off the dispatch goroutine before registering
// the connection) — Enqueue itself returns as soon as that goroutine is
// started. Resolve/dial failures therefore have no synchronous caller
// left to report to; dialJob logs and drops them instead.
func (f *Forwarder) Enqueue(sender, recipient string, body *mailmsg.Body, bounceOnFailure bool) error {
	f.Metrics.ForwardEnqueued()
	go f.dialJob(sender, recipient, body, bounceOnFailure)
	return nil
}

// dialJob resolves a downstream host for recipient's domain (spec.md
// §4.G's selection order) and dials it, registering the resulting
// connection with the forwarder's loop as a new Job. Runs off the
// dispatch goroutine — see Enqueue.
func (f *Forwarder) dialJob(sender, recipient string, body *mailmsg.Body, bounceOnFailure bool) {
	domain := domainOf(recipient)
	host, err := dnscheck.SelectRelay(f.Relayhost, domain)
	if err != nil {
		f.Logger.Error("resolving relay failed", slog.String("domain", domain), slog.String("error", err.Error()))
		f.Metrics.ForwardDropped()
		return
	}

	addr := host
	if !strings.Contains(addr, ":") {
		addr = addr + ":25"
	}

	job := &Job{
		fwd:             f,
		sender:          sender,
		recipient:       recipient,
		body:            body,
		bounceOnFailure: bounceOnFailure,
		state:           stateNew,
	}

	if _, err := reactor.Dial(f.Loop, "tcp", addr, "forward", func(conn reactor.Conn, remote string) reactor.Session {
		job.conn = conn
		job.logger = f.Logger.With(slog.String("job", remote), slog.String("recipient", recipient))
		return job
	}); err != nil {
		f.Logger.Error("dialing relay failed", slog.String("addr", addr), slog.String("error", err.Error()))
		f.Metrics.ForwardDropped()
	}
}

func domainOf(addr string) string {
	i := strings.LastIndexByte(addr, '@')
	if i < 0 {
		return addr
	}
	return addr[i+1:]
}

// OnOpen is a no-op: the job waits in stateNew for the downstream
// server's unsolicited 220 greeting before sending anything.
func (j *Job) OnOpen() {}

// OnLine advances the job's state machine per spec.md §4.G's table.
func (j *Job) OnLine(line reactor.Line) reactor.Action {
	text := strings.TrimRight(string(line.Text), "\r")
	j.lastReply = text

	verdict, code := classify(expectedCode(j.state), text)
	switch verdict {
	case nop:
		return reactor.Continue
	case retry:
		j.retries++
		if j.retries > maxRetries {
			return j.fail(fmt.Sprintf("%d retries exhausted, last reply: %s", maxRetries, text))
		}
		j.fwd.Metrics.ForwardRetried()
		j.send(j.state)
		return reactor.Continue
	case fail:
		_ = code
		return j.fail(text)
	case ok:
		return j.advance()
	}
	return reactor.Continue
}

// advance moves the job to its next state on a matching reply. retries
// resets to 0 here: the cap in OnLine's retry case is per command, not
// per job, so a command that eventually succeeds must not leave its
// retry count to accumulate against the next one.
func (j *Job) advance() reactor.Action {
	switch j.state {
	case stateNew:
		j.retries = 0
		j.state = stateHelo
		j.write("HELO " + j.fwd.Hostname + "\r\n")
	case stateHelo:
		j.retries = 0
		j.state = stateMail
		j.write("MAIL FROM:<" + j.sender + ">\r\n")
	case stateMail:
		j.retries = 0
		j.state = stateRcpt
		j.write("RCPT TO:<" + j.recipient + ">\r\n")
	case stateRcpt:
		j.retries = 0
		j.state = stateData
		j.write("DATA\r\n")
	case stateData:
		j.retries = 0
		j.state = stateSend
		j.writeBody()
	case stateSend:
		j.retries = 0
		j.state = stateQuit
		j.write("QUIT\r\n")
	case stateQuit:
		j.fwd.Metrics.ForwardDelivered()
		return reactor.Quit
	}
	return reactor.Continue
}

// send re-issues the command for the current state, used on RETRY.
func (j *Job) send(s state) {
	switch s {
	case stateHelo:
		j.write("HELO " + j.fwd.Hostname + "\r\n")
	case stateMail:
		j.write("MAIL FROM:<" + j.sender + ">\r\n")
	case stateRcpt:
		j.write("RCPT TO:<" + j.recipient + ">\r\n")
	case stateData:
		j.write("DATA\r\n")
	case stateSend:
		j.writeBody()
	case stateQuit:
		j.write("QUIT\r\n")
	}
}

// writeBody writes each body line followed by CRLF, then the lone "."
// terminator. Dot-stuffing leading-"." body lines is intentionally NOT
// performed here — spec.md §9 calls this out as a compliance gap in the
// original that must be pinned, not silently fixed: a body line
// consisting of a single "." will prematurely terminate the relayed
// DATA phase, same as the system being reimplemented.
// TODO: stuff a leading "." once a conforming downstream is required.
func (j *Job) writeBody() {
	for _, l := range j.body.Lines() {
		j.write(l.Text + "\r\n")
	}
	j.write(".\r\n")
}

func (j *Job) write(s string) {
	_, _ = j.conn.Write([]byte(s))
}

// fail drives the job to its terminal state via the bounce path.
func (j *Job) fail(reply string) reactor.Action {
	if j.bounceOnFailure {
		j.bounce(reply)
	} else {
		j.fwd.Metrics.ForwardDropped()
	}
	return reactor.Quit
}

// bounce synthesizes a delivery-failure mail per spec.md §4.G and
// enqueues it as a new job addressed back to the original sender, with
// bounce_on_failure=false — the sole guard against bounce storms
// (spec.md §9).
func (j *Job) bounce(reply string) {
	preamble := []string{
		"From: \"Mail Delivery System\" <postmaster@" + j.fwd.Hostname + ">",
		"To: <" + j.sender + ">",
		"Subject: Undelivered Mail Returned to Sender",
		"",
		"Delivery to the following recipient failed permanently:",
		"  " + j.recipient,
		"",
		"The downstream server reported:",
		"  " + reply,
		"",
		"---- original message ----",
	}
	bounceBody := j.body.Prepend(preamble...)

	j.fwd.Metrics.ForwardBounced()
	if err := j.fwd.Enqueue("postmaster@"+j.fwd.Hostname, j.sender, bounceBody, false); err != nil {
		j.logger.Error("bounce enqueue failed", slog.String("error", err.Error()))
	}
}

func (j *Job) Close() {}

type verdict int

const (
	ok verdict = iota
	retry
	fail
	nop
)

// classify extracts a reply line's 3-digit code and compares it against
// expected, per spec.md §4.G's reply-code classification.
func classify(expected int, line string) (verdict, int) {
	if len(line) < 4 {
		return nop, 0
	}
	code, err := strconv.Atoi(line[:3])
	if err != nil {
		return nop, 0
	}
	if line[3] == '-' {
		return nop, code // continuation line, in-progress
	}
	switch {
	case code == expected:
		return ok, code
	case code >= 400 && code < 500:
		return retry, code
	case code >= 500:
		return fail, code
	default:
		return nop, code
	}
}

func expectedCode(s state) int {
	switch s {
	case stateNew:
		return 220
	case stateHelo:
		return 250
	case stateMail:
		return 250
	case stateRcpt:
		return 250
	case stateData:
		return 354
	case stateSend:
		return 250
	case stateQuit:
		return 221
	}
	return 0
}
