package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Event names (wire-stable).
const (
	// EventChatMessage carries chat traffic both ways: client -> server with
	// {text}, server -> everyone with the stamped message.
	EventChatMessage = "chat:message"
	// EventChatAck confirms a send to the sender only (server -> client).
	EventChatAck = "chat:ack"
	// EventError is a generic error event (server -> client).
	EventError = "error"
)

// Event is the canonical wire wrapper. Ack is a client-chosen correlation id:
// when present on an inbound chat:message, the server answers the sender with
// a chat:ack carrying the same value.
type Event struct {
	Event   string          `json:"event"`
	Ack     string          `json:"ack,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs structural validation for an inbound Event.
func (e Event) Validate() error {
	if e.Event == "" {
		return errors.New("missing event")
	}
	switch e.Event {
	case EventChatMessage, EventChatAck, EventError:
		return nil
	default:
		return fmt.Errorf("unsupported event: %s", e.Event)
	}
}

// ChatSendPayload is the client -> server chat:message payload.
type ChatSendPayload struct {
	Text string `json:"text"`
}

// Message is a stamped chat message as broadcast to every endpoint.
// Immutable once created; it lives only for the duration of fan-out.
type Message struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Text      string    `json:"text"`
}

// AckPayload confirms a send request and returns the canonical message id.
type AckPayload struct {
	OK    bool   `json:"ok"`
	MsgID string `json:"msgId"`
}

// ErrorPayload describes a recoverable per-event failure.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newMessageEvent(m Message) Event {
	p, _ := json.Marshal(m)
	return Event{Event: EventChatMessage, Payload: p}
}

func newAckEvent(ackID, msgID string) Event {
	p, _ := json.Marshal(AckPayload{OK: true, MsgID: msgID})
	return Event{Event: EventChatAck, Ack: ackID, Payload: p}
}

func newErrorEvent(code, msg string) Event {
	p, _ := json.Marshal(ErrorPayload{Code: code, Message: msg})
	return Event{Event: EventError, Payload: p}
}
