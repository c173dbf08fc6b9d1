package broker

import "sync"

// Conn is the router-facing half of a connection adapter: a bounded
// outbound packet queue plus a done signal. The adapter drains
// Outbound() onto the socket and calls Close when the socket is gone;
// the router is the only sender and closes the outbound channel when it
// terminates the connection.
type Conn struct {
	out      chan Packet
	done     chan struct{}
	doneOnce sync.Once
	outOnce  sync.Once
}

// NewConn creates a connection handle with the given outbound queue
// capacity.
func NewConn(queueSize int) *Conn {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Conn{
		out:  make(chan Packet, queueSize),
		done: make(chan struct{}),
	}
}

// Outbound is the packet stream the adapter writes to the socket. The
// router closes it when the connection is terminated.
func (c *Conn) Outbound() <-chan Packet {
	return c.out
}

// Close marks the connection dead. Safe to call more than once. The
// adapter calls it when the socket closes so the router never blocks on
// a queue nobody is draining.
func (c *Conn) Close() {
	c.doneOnce.Do(func() {
		close(c.done)
	})
}

// Done is closed once the adapter has abandoned the connection
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// send blocks until the packet is queued or the connection dies.
// Blocking here is the backpressure path: the router stalls the
// publisher rather than dropping a QoS1/2 message.
func (c *Conn) send(pkt Packet) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.out <- pkt:
		return true
	case <-c.done:
		return false
	}
}

// trySend queues the packet only if there is space; a full queue drops
// it. Used for QoS0 deliveries.
func (c *Conn) trySend(pkt Packet) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.out <- pkt:
		return true
	default:
		return false
	}
}

// shutdown closes the outbound channel so the adapter's drain loop
// terminates. Router only; only after the conn leaves the registry.
func (c *Conn) shutdown() {
	c.outOnce.Do(func() {
		close(c.out)
	})
}
