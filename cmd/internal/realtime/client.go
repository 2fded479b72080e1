package realtime

import "sync"

// Client represents one connected endpoint.
//
// Design notes:
// - Send is intentionally NOT closed by the server to avoid panics from
//   concurrent fan-out.
// - done signals goroutines (and the gateway) to stop.
// - Close is idempotent.
type Client struct {
	EndpointID string

	// UserID is empty unless the gateway runs with auth binding enabled.
	UserID string

	Send chan Event

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(endpointID string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 64
	}
	return &Client{
		EndpointID: endpointID,
		Send:       make(chan Event, sendQueueSize),
		done:       make(chan struct{}),
	}
}

// Done returns a channel closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the client goroutines to stop (idempotent).
// It does NOT close Send to keep fan-out safe under concurrency.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
