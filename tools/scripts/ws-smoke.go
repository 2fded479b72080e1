// Package main provides a CI-friendly WebSocket smoke test for Conflux chat.
//
// It validates:
//   - handshake + subprotocol selection
//   - send -> ack correlation
//   - fanout to the sender and to a second client
//   - server-side rejection of blank text
//
// The wire structs are declared locally on purpose: the smoke tool talks the
// public protocol, not the server's internal packages.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const (
	subprotocol  = "conflux.chat.v1"
	maxReadBytes = 1 << 20 // 1MiB
)

type event struct {
	Event   string          `json:"event"`
	Ack     string          `json:"ack,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type chatSendPayload struct {
	Text string `json:"text"`
}

type message struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Text      string    `json:"text"`
}

type ackPayload struct {
	OK    bool   `json:"ok"`
	MsgID string `json:"msgId"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type smokeClient struct {
	name string
	conn *websocket.Conn

	inbox chan event
	errCh chan error
}

func main() {
	var (
		wsURL   = flag.String("url", "ws://127.0.0.1:8080/ws", "WebSocket URL")
		origin  = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		text    = flag.String("text", "hello conflux 👋", "Message text to send")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}

	root := context.Background()

	a := mustConnect(root, "A", *wsURL, *origin, *timeout)
	defer closeWS(a.conn)

	b := mustConnect(root, "B", *wsURL, *origin, *timeout)
	defer closeWS(b.conn)

	if *verbose {
		fmt.Printf("connected: origin=%q\n", *origin)
	}

	// Give the second join a moment to land before fanning out.
	time.Sleep(250 * time.Millisecond)

	corrID := fmt.Sprintf("smoke-%d", time.Now().UnixNano())
	msgID := mustSendAndAssertAck(root, a, corrID, *text, *timeout)

	mustAssertBroadcast(root, a, msgID, *text, *timeout)
	mustAssertBroadcast(root, b, msgID, *text, *timeout)

	mustAssertBlankRejected(root, a, *timeout)

	fmt.Printf("OK: msg_id=%s\n", msgID)
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	if strings.TrimSpace(u.Path) == "" {
		return errors.New("missing path")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustConnect(parent context.Context, name, wsURL, origin string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect %s: %v", name, err)
	}

	assertSubprotocol(resp, subprotocol)

	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		name:  name,
		conn:  conn,
		inbox: make(chan event, 512),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()
	return c
}

func assertSubprotocol(resp *http.Response, want string) {
	if resp == nil {
		return
	}
	got := strings.TrimSpace(resp.Header.Get("Sec-WebSocket-Protocol"))
	if got == "" {
		return
	}
	if got != want {
		fatalf("subprotocol mismatch: got=%q want=%q", got, want)
	}
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			mt, data, err := c.conn.Read(context.Background())
			if err != nil {
				select {
				case c.errCh <- err:
				default:
				}
				return
			}

			if mt != websocket.MessageText && mt != websocket.MessageBinary {
				select {
				case c.errCh <- fmt.Errorf("unsupported message type: %v", mt):
				default:
				}
				return
			}

			var ev event
			if err := json.Unmarshal(data, &ev); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad json: %w", err):
				default:
				}
				return
			}

			select {
			case c.inbox <- ev:
			default:
				select {
				case c.errCh <- errors.New("inbox overflow: consumer too slow"):
				default:
				}
				return
			}
		}
	}()
}

func mustSendAndAssertAck(parent context.Context, c *smokeClient, corrID, text string, stepTimeout time.Duration) string {
	mustWriteWithTimeout(parent, c.conn, event{
		Event:   "chat:message",
		Ack:     corrID,
		Payload: mustJSON(chatSendPayload{Text: text}),
	}, stepTimeout)

	ack := c.mustReadUntilEvent(parent, "chat:ack", stepTimeout, map[string]struct{}{"chat:message": {}})
	if ack.Ack != corrID {
		fatalf("ack correlation mismatch (%s): got=%q want=%q", c.name, ack.Ack, corrID)
	}

	var p ackPayload
	if err := json.Unmarshal(ack.Payload, &p); err != nil {
		fatalf("unmarshal chat:ack payload (%s): %v", c.name, err)
	}
	if !p.OK || strings.TrimSpace(p.MsgID) == "" {
		fatalf("chat:ack invalid payload (%s): %+v", c.name, p)
	}
	return p.MsgID
}

func mustAssertBroadcast(parent context.Context, c *smokeClient, msgID, text string, stepTimeout time.Duration) {
	ev := c.mustReadUntilEvent(parent, "chat:message", stepTimeout, map[string]struct{}{"chat:ack": {}})

	var m message
	if err := json.Unmarshal(ev.Payload, &m); err != nil {
		fatalf("unmarshal chat:message payload (%s): %v", c.name, err)
	}
	if m.ID != msgID {
		fatalf("broadcast id mismatch (%s): got=%q want=%q", c.name, m.ID, msgID)
	}
	if m.Text != text {
		fatalf("broadcast text mismatch (%s): got=%q want=%q", c.name, m.Text, text)
	}
	if m.CreatedAt.IsZero() {
		fatalf("broadcast createdAt missing/zero (%s)", c.name)
	}
}

func mustAssertBlankRejected(parent context.Context, c *smokeClient, stepTimeout time.Duration) {
	mustWriteWithTimeout(parent, c.conn, event{
		Event:   "chat:message",
		Payload: mustJSON(chatSendPayload{Text: "   "}),
	}, stepTimeout)

	ev := c.mustReadUntilEvent(parent, "error", stepTimeout, nil)

	var p errorPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		fatalf("unmarshal error payload (%s): %v", c.name, err)
	}
	if p.Code != "empty_text" {
		fatalf("blank text: unexpected error code (%s): %q", c.name, p.Code)
	}
}

func (c *smokeClient) mustReadUntilEvent(parent context.Context, wantEvent string, stepTimeout time.Duration, skip map[string]struct{}) event {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q (%s): %v", wantEvent, c.name, ctx.Err())
		case err := <-c.errCh:
			fatalf("connection error while waiting for %q (%s): %v", wantEvent, c.name, err)
		case ev, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q (%s)", wantEvent, c.name)
			}
			if ev.Event == wantEvent {
				return ev
			}
			if ev.Event == "error" && wantEvent != "error" {
				var ep errorPayload
				_ = json.Unmarshal(ev.Payload, &ep)
				fatalf("server error (%s): code=%q msg=%q", c.name, ep.Code, ep.Message)
			}
			if skip != nil {
				if _, ok := skip[ev.Event]; ok {
					continue
				}
			}
			fatalf("unexpected event (%s): got=%q want=%q", c.name, ev.Event, wantEvent)
		}
	}
}

func mustWriteWithTimeout(parent context.Context, conn *websocket.Conn, ev event, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(ev)
	if err != nil {
		fatalf("marshal event: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed: %v", err)
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
