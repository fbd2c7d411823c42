package realtime

import (
	"sync"

	"github.com/alumnet/alumnet/core"
)

// QueueConn is a Conn backed by a bounded frame queue, drained by the socket writer.
type QueueConn struct {
	id     ConnID
	queue  chan Frame
	closed bool
	mu     sync.RWMutex
}

var _ Conn = (*QueueConn)(nil)

func NewQueueConn(size int) *QueueConn {
	if size <= 0 {
		size = 1
	}
	return &QueueConn{id: ConnID(core.NewID()), queue: make(chan Frame, size)}
}

func (c *QueueConn) ID() ConnID { return c.id }

// Send enqueues the event, failing with ErrSendBufferFull instead of blocking.
func (c *QueueConn) Send(event string, payload interface{}) error {
	frame, err := NewFrame(event, payload)
	if err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.queue <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Queue is closed by Close.
func (c *QueueConn) Queue() <-chan Frame { return c.queue }

// Close is idempotent.
func (c *QueueConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
}
