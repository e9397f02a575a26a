package room

import "sync"

// Conn is one participant's outbound side. The room writes marshalled state
// into the buffered channel; the transport drains it.
type Conn struct {
	ID   string
	send chan []byte

	closeOnce sync.Once
}

func NewConn(id string, buffer int) *Conn {
	if buffer < 1 {
		buffer = 1
	}
	return &Conn{
		ID:   id,
		send: make(chan []byte, buffer),
	}
}

// Outbound is closed once the room has let go of the connection.
func (c *Conn) Outbound() <-chan []byte { return c.send }

// offer never blocks; it reports whether msg was queued.
func (c *Conn) offer(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}
