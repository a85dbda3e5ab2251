package pop3

import (
	"log/slog"

	"mailrelayd/internal/mailbox"
	"mailrelayd/internal/metrics"
	"mailrelayd/internal/store"
)

// Deps holds the external collaborators spec.md §4.H/§6 name: the
// mailbox lock table (itself backed by the shared user/credential
// table) and the persistent mail store.
type Deps struct {
	Hostname string
	Locks    *mailbox.LockTable
	Store    store.Store
	Metrics  metrics.Collector
	Logger   *slog.Logger
}
