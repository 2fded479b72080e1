package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startHub(t *testing.T) *Hub {
	t.Helper()

	h := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func join(t *testing.T, h *Hub, queue int) *Client {
	t.Helper()

	id, err := NewEndpointID(time.Now().UTC())
	if err != nil {
		t.Fatalf("endpoint id: %v", err)
	}
	c := NewClient(id, queue)
	if err := h.Join(context.Background(), c); err != nil {
		t.Fatalf("join: %v", err)
	}
	return c
}

func recvEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev := <-c.Send:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for event on %s", c.EndpointID)
		return Event{}
	}
}

func decodeMessage(t *testing.T, ev Event) Message {
	t.Helper()
	if ev.Event != EventChatMessage {
		t.Fatalf("event=%q want %q", ev.Event, EventChatMessage)
	}
	var m Message
	if err := json.Unmarshal(ev.Payload, &m); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return m
}

func TestPublishBroadcastsToAllIncludingSender(t *testing.T) {
	h := startHub(t)

	sender := join(t, h, 8)
	peers := []*Client{join(t, h, 8), join(t, h, 8)}

	if err := h.Publish(context.Background(), sender, "hello", "corr-1"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got := decodeMessage(t, recvEvent(t, sender))
	if got.Text != "hello" || got.ID == "" || got.CreatedAt.IsZero() {
		t.Fatalf("message=%+v", got)
	}

	for _, p := range peers {
		m := decodeMessage(t, recvEvent(t, p))
		if m.ID != got.ID || m.Text != "hello" {
			t.Fatalf("peer message=%+v want id=%s", m, got.ID)
		}
	}

	// Only the sender gets the ack, correlated and carrying the message id.
	ack := recvEvent(t, sender)
	if ack.Event != EventChatAck || ack.Ack != "corr-1" {
		t.Fatalf("ack event=%+v", ack)
	}
	var p AckPayload
	if err := json.Unmarshal(ack.Payload, &p); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !p.OK || p.MsgID != got.ID {
		t.Fatalf("ack payload=%+v want msgId=%s", p, got.ID)
	}

	for _, peer := range peers {
		select {
		case ev := <-peer.Send:
			t.Fatalf("peer received unexpected event: %+v", ev)
		default:
		}
	}
}

func TestPublishWithoutAckIDSendsNoAck(t *testing.T) {
	h := startHub(t)
	c := join(t, h, 8)

	if err := h.Publish(context.Background(), c, "hi", ""); err != nil {
		t.Fatalf("publish: %v", err)
	}

	decodeMessage(t, recvEvent(t, c))
	select {
	case ev := <-c.Send:
		t.Fatalf("unexpected event after broadcast: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDeliveryOrderMatchesAcceptOrder(t *testing.T) {
	h := startHub(t)

	a := join(t, h, 16)
	b := join(t, h, 16)

	texts := []string{"first", "second", "third", "fourth"}
	for _, txt := range texts {
		if err := h.Publish(context.Background(), a, txt, ""); err != nil {
			t.Fatalf("publish %q: %v", txt, err)
		}
	}

	for _, c := range []*Client{a, b} {
		for i, want := range texts {
			m := decodeMessage(t, recvEvent(t, c))
			if m.Text != want {
				t.Fatalf("endpoint %s message %d: got %q want %q", c.EndpointID, i, m.Text, want)
			}
		}
	}
}

func TestEmptyTextRejected(t *testing.T) {
	h := startHub(t)

	sender := join(t, h, 8)
	peer := join(t, h, 8)

	if err := h.Publish(context.Background(), sender, "   \t ", "corr-1"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	ev := recvEvent(t, sender)
	if ev.Event != EventError {
		t.Fatalf("event=%q want %q", ev.Event, EventError)
	}
	var p ErrorPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if p.Code != "empty_text" {
		t.Fatalf("code=%q", p.Code)
	}

	// Nothing was broadcast: the next publish is the first thing peers see.
	if err := h.Publish(context.Background(), sender, "real", ""); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if m := decodeMessage(t, recvEvent(t, peer)); m.Text != "real" {
		t.Fatalf("peer got %q want %q", m.Text, "real")
	}
}

func TestOverlongTextRejected(t *testing.T) {
	h := startHub(t)
	c := join(t, h, 8)

	long := make([]rune, maxMessageChars+1)
	for i := range long {
		long[i] = 'x'
	}

	if err := h.Publish(context.Background(), c, string(long), ""); err != nil {
		t.Fatalf("publish: %v", err)
	}

	ev := recvEvent(t, c)
	if ev.Event != EventError {
		t.Fatalf("event=%q want %q", ev.Event, EventError)
	}
}

func TestSlowEndpointIsDropped(t *testing.T) {
	h := startHub(t)

	fast := join(t, h, 16)
	slow := join(t, h, 1) // room for exactly one undrained event

	for _, txt := range []string{"one", "two"} {
		if err := h.Publish(context.Background(), fast, txt, ""); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	// The second broadcast overflows the slow queue; the hub must disconnect
	// the endpoint instead of blocking.
	select {
	case <-slow.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("slow endpoint was not dropped")
	}

	for _, want := range []string{"one", "two"} {
		if m := decodeMessage(t, recvEvent(t, fast)); m.Text != want {
			t.Fatalf("fast got %q want %q", m.Text, want)
		}
	}
}

func TestLeaveClosesClient(t *testing.T) {
	h := startHub(t)

	stay := join(t, h, 8)
	gone := join(t, h, 8)

	if err := h.Leave(context.Background(), gone); err != nil {
		t.Fatalf("leave: %v", err)
	}

	select {
	case <-gone.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("leave did not close the client")
	}

	if err := h.Publish(context.Background(), stay, "still here", ""); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if m := decodeMessage(t, recvEvent(t, stay)); m.Text != "still here" {
		t.Fatalf("got %q", m.Text)
	}
	select {
	case ev := <-gone.Send:
		t.Fatalf("departed endpoint received event: %+v", ev)
	default:
	}
}
