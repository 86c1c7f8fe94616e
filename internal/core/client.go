package core

import "sync"

// Client is the delivery handle of one connection. Its owner drains Events
// and is the only party that writes to the underlying transport.
type Client struct {
	ID   string
	Addr string

	events chan *Event
	done   chan struct{}

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
}

// NewClient constructs a client with a bounded outbox.
func NewClient(id, addr string, outboxSize int) *Client {
	if outboxSize <= 0 {
		outboxSize = 1
	}
	return &Client{
		ID:     id,
		Addr:   addr,
		events: make(chan *Event, outboxSize),
		done:   make(chan struct{}),
	}
}

// Deliver queues an event without blocking. A full outbox kills the client
// with ErrSlowConsumer; the return value reports whether the event was queued.
func (c *Client) Deliver(ev *Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.events <- ev:
		return true
	default:
		c.Kill(ErrSlowConsumer)
		return false
	}
}

// Events is the outbox the owner drains.
func (c *Client) Events() <-chan *Event {
	return c.events
}

// Done is closed once the client is killed or closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Kill terminates the client with err. Only the first call has effect.
func (c *Client) Kill(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}

// Close terminates the client normally.
func (c *Client) Close() {
	c.Kill(ErrClientClosed)
}

// Err returns the terminal error, or nil while the client is alive.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
