// Package mailmsg holds the shared, ownership-transferring representation of
// a message body as it moves from the SMTP DATA phase to local delivery or
// to the outbound forwarder.
package mailmsg

import "strings"

// Line is one line of a message body, stored without its terminating LF.
// Length is tracked separately so callers don't need to re-scan the bytes
// to compute octet counts for POP3 LIST/STAT/UIDL responses.
type Line struct {
	Text string
	Len  int
}

// NewLine builds a Line from raw text, recording its length.
func NewLine(text string) Line {
	return Line{Text: text, Len: len(text)}
}

// Body is an ordered, immutable-by-convention sequence of body lines.
// It is sealed by the SMTP DATA phase when the "." terminator line is
// seen, then moved (not shared) into exactly one of: a local mailbox
// push, or a forwarder Job. Callers that need a second independent copy
// must call Copy explicitly — Body itself never aliases its backing slice.
type Body struct {
	lines []Line
	size  int64
}

// NewBuilder returns an empty Body ready to accumulate DATA-phase lines.
func NewBuilder() *Body {
	return &Body{}
}

// Append adds one line (as received, CR already stripped by the caller).
func (b *Body) Append(text string) {
	l := NewLine(text)
	b.lines = append(b.lines, l)
	// +2 accounts for the CRLF each line is re-serialized with downstream.
	b.size += int64(l.Len) + 2
}

// Lines returns the body's lines in receipt order. Callers must not
// mutate the returned slice.
func (b *Body) Lines() []Line {
	return b.lines
}

// Len returns the number of lines in the body.
func (b *Body) Len() int {
	return len(b.lines)
}

// Size returns the total byte size of the body as it would be written
// to the wire or to storage (each line plus its CRLF).
func (b *Body) Size() int64 {
	return b.size
}

// Concat renders the body as it is appended to a local mailbox: each
// line followed by CRLF, in receipt order, with nothing else added.
func (b *Body) Concat() string {
	var sb strings.Builder
	sb.Grow(int(b.size))
	for _, l := range b.lines {
		sb.WriteString(l.Text)
		sb.WriteString("\r\n")
	}
	return sb.String()
}

// Copy returns a deep, independent copy of the body. The SMTP session
// must call this (or simply stop referencing its own builder) whenever
// a body is handed off to a second consumer; Body never aliases backing
// storage, so two copies can be mutated (by their respective builders)
// without interfering with each other. In practice the SMTP session
// builds exactly one Body and moves it once, and the bounce path derives
// its new body with Prepend rather than Copy.
func (b *Body) Copy() *Body {
	out := &Body{
		lines: make([]Line, len(b.lines)),
		size:  b.size,
	}
	copy(out.lines, b.lines)
	return out
}

// Prepend returns a new Body consisting of the given header lines
// followed by this body's lines. Used by the forwarder's bounce
// synthesis to wrap the original message under a delivery-failure
// preamble without mutating the original.
func (b *Body) Prepend(headerLines ...string) *Body {
	out := &Body{
		lines: make([]Line, 0, len(headerLines)+len(b.lines)),
	}
	for _, h := range headerLines {
		out.Append(h)
	}
	out.lines = append(out.lines, b.lines...)
	for _, l := range b.lines {
		out.size += int64(l.Len) + 2
	}
	return out
}
