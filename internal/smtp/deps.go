package smtp

import (
	"log/slog"

	"mailrelayd/internal/mailmsg"
	"mailrelayd/internal/metrics"
	"mailrelayd/internal/users"
)

// Deps holds the external collaborators spec.md §1 names as out of
// core scope: the user/credential table, DNS resolution, the mail
// store, and the forwarder. DNS, the store and the forwarder are
// consumed through function fields wired in cmd/mailrelayd; the user
// table is the concrete *users.Table.
type Deps struct {
	Hostname string
	Users    *users.Table
	Resolver func(domain string) error
	Deliver  func(user string, body *mailmsg.Body) error
	Forward  func(sender, recipient string, body *mailmsg.Body, bounceOnFailure bool) error
	Metrics  metrics.Collector
	Logger   *slog.Logger
}
