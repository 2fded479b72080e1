package realtime

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"conflux/cmd/internal/metrics"
)

type hubEventKind uint8

const (
	hubJoin hubEventKind = iota
	hubLeave
	hubPublish
)

type hubEvent struct {
	kind   hubEventKind
	client *Client
	text   string
	ackID  string
}

// Hub owns the live endpoint set and fans chat traffic out to it.
//
// All state transitions flow through a single inbound channel consumed by one
// run loop, so messages have a total accept order and every endpoint observes
// them in that order. Slow endpoints are dropped, never waited for: a full
// send queue disconnects the client instead of blocking the loop.
type Hub struct {
	log     *slog.Logger
	inbound chan hubEvent

	// now is swappable for tests.
	now func() time.Time

	// clients is owned exclusively by the Run goroutine.
	clients map[string]*Client
}

const hubInboundBuffer = 256

// NewHub constructs a Hub. Call Run before any Join/Publish.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:     log,
		inbound: make(chan hubEvent, hubInboundBuffer),
		now:     func() time.Time { return time.Now().UTC() },
		clients: make(map[string]*Client),
	}
}

// Run consumes hub events until ctx is canceled. It must run in exactly one
// goroutine; the clients map is only ever touched here.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for id, c := range h.clients {
				delete(h.clients, id)
				c.Close()
				metrics.WSConnections.Dec()
			}
			return
		case ev := <-h.inbound:
			switch ev.kind {
			case hubJoin:
				h.onJoin(ev.client)
			case hubLeave:
				h.onLeave(ev.client)
			case hubPublish:
				h.onPublish(ev)
			}
		}
	}
}

// Join registers an endpoint in the live set.
func (h *Hub) Join(ctx context.Context, c *Client) error {
	return h.submit(ctx, hubEvent{kind: hubJoin, client: c})
}

// Leave removes an endpoint from the live set and closes it.
// No event is emitted to other endpoints about the departure.
func (h *Hub) Leave(ctx context.Context, c *Client) error {
	return h.submit(ctx, hubEvent{kind: hubLeave, client: c})
}

// Publish accepts an inbound chat message from c. The hub stamps it and fans
// it out to every live endpoint including the sender; when ackID is non-empty
// the sender alone receives a chat:ack carrying the new message id.
func (h *Hub) Publish(ctx context.Context, c *Client, text, ackID string) error {
	return h.submit(ctx, hubEvent{kind: hubPublish, client: c, text: text, ackID: ackID})
}

func (h *Hub) submit(ctx context.Context, ev hubEvent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case h.inbound <- ev:
		return nil
	}
}

// ---- run-loop handlers ----

func (h *Hub) onJoin(c *Client) {
	if c == nil || c.EndpointID == "" {
		return
	}
	h.clients[c.EndpointID] = c
	metrics.WSConnections.Inc()
	h.log.Info("hub.join", "endpoint_id", c.EndpointID, "live", len(h.clients))
}

func (h *Hub) onLeave(c *Client) {
	if c == nil {
		return
	}
	if _, ok := h.clients[c.EndpointID]; !ok {
		return
	}
	delete(h.clients, c.EndpointID)
	c.Close()
	metrics.WSConnections.Dec()
	h.log.Info("hub.leave", "endpoint_id", c.EndpointID, "live", len(h.clients))
}

func (h *Hub) onPublish(ev hubEvent) {
	sender := ev.client

	text := strings.TrimSpace(ev.text)
	if text == "" {
		// Rejected here as well as client-side: a non-conforming client must
		// not be able to broadcast blank messages.
		h.deliver(sender, newErrorEvent("empty_text", "message text must not be empty"))
		return
	}
	if len([]rune(text)) > maxMessageChars {
		h.deliver(sender, newErrorEvent("text_too_long", "message text exceeds limit"))
		return
	}

	now := h.now()
	id, err := NewMessageID(now)
	if err != nil {
		h.log.Error("hub.stamp.fail", "err", err)
		h.deliver(sender, newErrorEvent("internal", "could not stamp message"))
		return
	}

	broadcast := newMessageEvent(Message{ID: id, CreatedAt: now, Text: text})
	metrics.WSMessagesTotal.Inc()

	for epID, c := range h.clients {
		if h.deliver(c, broadcast) {
			continue
		}
		// Full queue or already closing: drop the endpoint rather than let it
		// stall delivery to everyone else.
		delete(h.clients, epID)
		c.Close()
		metrics.WSConnections.Dec()
		metrics.WSDroppedTotal.Inc()
		h.log.Info("hub.drop.slow", "endpoint_id", epID, "live", len(h.clients))
	}

	if ev.ackID != "" {
		h.deliver(sender, newAckEvent(ev.ackID, id))
	}
}

// deliver enqueues without ever blocking the run loop.
func (h *Hub) deliver(c *Client, ev Event) bool {
	if c == nil {
		return false
	}
	select {
	case <-c.Done():
		return false
	default:
	}
	select {
	case c.Send <- ev:
		return true
	default:
		return false
	}
}
