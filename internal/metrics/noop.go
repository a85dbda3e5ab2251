package metrics

// NoopCollector implements Collector with empty stubs. Used when the
// config file's [metrics] enabled is off (the default), so call sites
// never need a nil check.
type NoopCollector struct{}

func (n *NoopCollector) ConnectionOpened(listener string)   {}
func (n *NoopCollector) ConnectionClosed(listener string)   {}
func (n *NoopCollector) CommandProcessed(proto, cmd string) {}
func (n *NoopCollector) AuthAttempt(success bool)           {}
func (n *NoopCollector) MessageDelivered(sizeBytes int64)   {}
func (n *NoopCollector) MessageRetrieved(sizeBytes int64)   {}
func (n *NoopCollector) MessageDeleted()                    {}
func (n *NoopCollector) LockContention()                    {}
func (n *NoopCollector) ForwardEnqueued()                   {}
func (n *NoopCollector) ForwardDelivered()                  {}
func (n *NoopCollector) ForwardRetried()                    {}
func (n *NoopCollector) ForwardBounced()                    {}
func (n *NoopCollector) ForwardDropped()                    {}
