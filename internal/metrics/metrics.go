// Package metrics provides interfaces and implementations for collecting
// activity across all three listeners and the forwarder. This package
// defines the Collector interface for recording metrics and the Server
// interface for exposing them.
package metrics

import "context"

// Collector defines the interface for recording daemon-wide metrics.
type Collector interface {
	// Connection lifecycle, tagged by protocol ("smtp" or "pop3"; POP3S
	// connections are counted under "pop3").
	ConnectionOpened(listener string)
	ConnectionClosed(listener string)

	// SMTP/POP3 command dispatch, tagged by protocol and command verb.
	CommandProcessed(proto, command string)

	// AUTH PLAIN / POP3 USER+PASS attempts.
	AuthAttempt(success bool)

	// Local delivery via the mail store.
	MessageDelivered(sizeBytes int64)

	// POP3 mailbox activity.
	MessageRetrieved(sizeBytes int64)
	MessageDeleted()
	LockContention()

	// Outbound forwarding.
	ForwardEnqueued()
	ForwardDelivered()
	ForwardRetried()
	ForwardBounced()
	ForwardDropped()
}

// Server defines the interface for a metrics HTTP server.
type Server interface {
	// Start begins serving metrics. It blocks until the context is canceled
	// or an error occurs.
	Start(ctx context.Context) error

	// Shutdown gracefully stops the metrics server.
	Shutdown(ctx context.Context) error
}
