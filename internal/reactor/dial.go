package reactor

import "net"

// Dial connects to address and registers the resulting connection with
// the loop under kind, making the forwarder's outbound socket a
// first-class participant of the same event loop per spec.md §2's
// control-flow note ("G's outbound descriptor is not a blocking
// subroutine"). The dial itself is a blocking call; callers MUST make
// it from their own goroutine, never from the dispatch goroutine —
// internal/forwarder's dialJob is the one caller, and it runs on a
// goroutine Enqueue starts for exactly this reason.
func Dial(loop *Loop, network, address, kind string, newSession NewSessionFunc) (uint64, error) {
	conn, err := net.Dial(network, address)
	if err != nil {
		return 0, err
	}
	return loop.Register(newPlainConn(conn), kind, newSession), nil
}
