package metrics

import "github.com/prometheus/client_golang/prometheus"

// PrometheusCollector implements Collector using real Prometheus metrics.
type PrometheusCollector struct {
	connectionsTotal  *prometheus.CounterVec
	connectionsActive *prometheus.GaugeVec
	commandsTotal     *prometheus.CounterVec
	authAttemptsTotal *prometheus.CounterVec

	messagesDeliveredTotal prometheus.Counter
	messagesSizeBytes      prometheus.Histogram

	messagesRetrievedTotal prometheus.Counter
	messagesDeletedTotal   prometheus.Counter
	lockContentionTotal    prometheus.Counter

	forwardEnqueuedTotal  prometheus.Counter
	forwardDeliveredTotal prometheus.Counter
	forwardRetriedTotal   prometheus.Counter
	forwardBouncedTotal   prometheus.Counter
	forwardDroppedTotal   prometheus.Counter
}

// NewPrometheusCollector creates and registers all metrics against reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailrelayd_connections_total",
			Help: "Total connections accepted, by listener.",
		}, []string{"listener"}),
		connectionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mailrelayd_connections_active",
			Help: "Currently active connections, by listener.",
		}, []string{"listener"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailrelayd_commands_total",
			Help: "Protocol commands processed, by protocol and verb.",
		}, []string{"proto", "command"}),
		authAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailrelayd_auth_attempts_total",
			Help: "Authentication attempts, by result.",
		}, []string{"result"}),
		messagesDeliveredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailrelayd_messages_delivered_total",
			Help: "Messages delivered to a local mailbox.",
		}),
		messagesSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailrelayd_message_size_bytes",
			Help:    "Size of locally delivered messages in bytes.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 10),
		}),
		messagesRetrievedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailrelayd_pop3_retrieved_total",
			Help: "Messages retrieved via POP3 RETR.",
		}),
		messagesDeletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailrelayd_pop3_deleted_total",
			Help: "Messages committed deleted at POP3 QUIT.",
		}),
		lockContentionTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailrelayd_mailbox_lock_contention_total",
			Help: "POP3 sessions rejected due to mailbox lock contention.",
		}),
		forwardEnqueuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailrelayd_forward_enqueued_total",
			Help: "Forward jobs enqueued.",
		}),
		forwardDeliveredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailrelayd_forward_delivered_total",
			Help: "Forward jobs that completed delivery.",
		}),
		forwardRetriedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailrelayd_forward_retried_total",
			Help: "Forward job command retries (4xx replies).",
		}),
		forwardBouncedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailrelayd_forward_bounced_total",
			Help: "Bounce mails synthesized after a forward failure.",
		}),
		forwardDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailrelayd_forward_dropped_total",
			Help: "Forward jobs dropped without a bounce (relay resolve or dial failure, or a failed bounce).",
		}),
	}

	reg.MustRegister(
		c.connectionsTotal, c.connectionsActive, c.commandsTotal, c.authAttemptsTotal,
		c.messagesDeliveredTotal, c.messagesSizeBytes,
		c.messagesRetrievedTotal, c.messagesDeletedTotal, c.lockContentionTotal,
		c.forwardEnqueuedTotal, c.forwardDeliveredTotal, c.forwardRetriedTotal,
		c.forwardBouncedTotal, c.forwardDroppedTotal,
	)
	return c
}

func (c *PrometheusCollector) ConnectionOpened(listener string) {
	c.connectionsTotal.WithLabelValues(listener).Inc()
	c.connectionsActive.WithLabelValues(listener).Inc()
}

func (c *PrometheusCollector) ConnectionClosed(listener string) {
	c.connectionsActive.WithLabelValues(listener).Dec()
}

func (c *PrometheusCollector) CommandProcessed(proto, command string) {
	c.commandsTotal.WithLabelValues(proto, command).Inc()
}

func (c *PrometheusCollector) AuthAttempt(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.authAttemptsTotal.WithLabelValues(result).Inc()
}

func (c *PrometheusCollector) MessageDelivered(sizeBytes int64) {
	c.messagesDeliveredTotal.Inc()
	c.messagesSizeBytes.Observe(float64(sizeBytes))
}

func (c *PrometheusCollector) MessageRetrieved(sizeBytes int64) { c.messagesRetrievedTotal.Inc() }
func (c *PrometheusCollector) MessageDeleted()                  { c.messagesDeletedTotal.Inc() }
func (c *PrometheusCollector) LockContention()                  { c.lockContentionTotal.Inc() }
func (c *PrometheusCollector) ForwardEnqueued()                 { c.forwardEnqueuedTotal.Inc() }
func (c *PrometheusCollector) ForwardDelivered()                { c.forwardDeliveredTotal.Inc() }
func (c *PrometheusCollector) ForwardRetried()                  { c.forwardRetriedTotal.Inc() }
func (c *PrometheusCollector) ForwardBounced()                  { c.forwardBouncedTotal.Inc() }
func (c *PrometheusCollector) ForwardDropped()                  { c.forwardDroppedTotal.Inc() }
