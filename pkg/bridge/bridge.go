// Package bridge connects the orchestration core to the in-page script over a
// local WebSocket. Capability calls are request/response frames correlated by
// ID; page events (content visible, user activity, replies) arrive as
// unsolicited event frames and are exposed as a channel.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"feedpilot/pkg/logx"
	"feedpilot/pkg/proto"
)

// ErrClosed is returned by calls made after the bridge shut down.
var ErrClosed = errors.New("bridge: connection closed")

const (
	subprotocol = "feedpilot"
	// eventBuffer bounds the page event channel. Events beyond it are
	// dropped; the page re-announces visible content on the next poll.
	eventBuffer = 64
)

// frame is the wire format shared by calls, responses, and events.
type frame struct {
	ID     string           `json:"id,omitempty"`
	Method string           `json:"method,omitempty"`
	Params json.RawMessage  `json:"params,omitempty"`
	Result json.RawMessage  `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
	Event  *proto.PageEvent `json:"event,omitempty"`
}

// Client is the page-side capability implementation. It satisfies all of the
// feed collaborator contracts over a single connection.
type Client struct {
	conn   *websocket.Conn
	logger *logx.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan *frame
	closed  bool

	events chan proto.PageEvent
	done   chan struct{}
}

// Dial connects to the page script at url and starts the read loop.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{subprotocol},
	})
	if err != nil {
		return nil, fmt.Errorf("bridge: failed to dial %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		logger:  logx.NewLogger("bridge"),
		pending: make(map[string]chan *frame),
		events:  make(chan proto.PageEvent, eventBuffer),
		done:    make(chan struct{}),
	}

	go c.readLoop()
	c.logger.Info("connected to page at %s", url)
	return c, nil
}

// Events returns the stream of page events. The channel closes when the
// connection shuts down.
func (c *Client) Events() <-chan proto.PageEvent {
	return c.events
}

// Close shuts down the connection. Pending calls fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	return c.conn.Close(websocket.StatusNormalClosure, "session over")
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		if !c.closed {
			c.closed = true
			close(c.done)
		}
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.mu.Unlock()
		close(c.events)
	}()

	for {
		_, data, err := c.conn.Read(context.Background())
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("read loop ended: %v", err)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn("discarding malformed frame: %v", err)
			continue
		}

		switch {
		case f.Event != nil:
			c.deliverEvent(*f.Event)
		case f.ID != "":
			c.deliverResponse(&f)
		default:
			c.logger.Debug("discarding frame with no id and no event")
		}
	}
}

func (c *Client) deliverEvent(event proto.PageEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case c.events <- event:
	default:
		c.logger.Warn("event buffer full, dropping %s", event.Type)
	}
}

func (c *Client) deliverResponse(f *frame) {
	c.mu.Lock()
	ch, ok := c.pending[f.ID]
	if ok {
		delete(c.pending, f.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("no pending call for response %s", f.ID)
		return
	}
	ch <- f
}

// call performs one request/response round trip. result may be nil when the
// caller only needs success or failure.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	id := uuid.New().String()
	ch := make(chan *frame, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	cleanup := func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}

	req := frame{ID: id, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			cleanup()
			return fmt.Errorf("bridge: failed to encode %s params: %w", method, err)
		}
		req.Params = data
	}

	body, err := json.Marshal(&req)
	if err != nil {
		cleanup()
		return fmt.Errorf("bridge: failed to encode %s frame: %w", method, err)
	}

	c.writeMu.Lock()
	err = c.conn.Write(ctx, websocket.MessageText, body)
	c.writeMu.Unlock()
	if err != nil {
		cleanup()
		return fmt.Errorf("bridge: failed to send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		cleanup()
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	case resp, ok := <-ch:
		if !ok {
			return ErrClosed
		}
		if resp.Error != "" {
			return fmt.Errorf("bridge: %s failed: %s", method, resp.Error)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("bridge: failed to decode %s result: %w", method, err)
			}
		}
		return nil
	}
}

type extractParams struct {
	Handle proto.Handle `json:"handle"`
}

type extractResult struct {
	Found bool               `json:"found"`
	Item  *proto.ContentItem `json:"item,omitempty"`
}

// Extract pulls the content item behind the handle. A miss (handle no longer
// resolving to content) returns nil, nil.
func (c *Client) Extract(ctx context.Context, handle proto.Handle) (*proto.ContentItem, error) {
	var res extractResult
	if err := c.call(ctx, "extract", extractParams{Handle: handle}, &res); err != nil {
		return nil, err
	}
	if !res.Found || res.Item == nil {
		return nil, nil
	}
	if res.Item.Language == "" {
		res.Item.Language = proto.DetectLanguage(res.Item.Text)
	}
	return res.Item, nil
}

type likeParams struct {
	Handle proto.Handle `json:"handle"`
	Heart  bool         `json:"heart"`
}

// Like applies a like or heart reaction to the content behind the handle.
func (c *Client) Like(ctx context.Context, handle proto.Handle, heart bool) error {
	return c.call(ctx, "like", likeParams{Handle: handle, Heart: heart}, nil)
}

type injectParams struct {
	Handle proto.Handle `json:"handle"`
	Text   string       `json:"text"`
}

type injectResult struct {
	Injected bool `json:"injected"`
}

// Inject places comment text into the page's comment box for human approval.
func (c *Client) Inject(ctx context.Context, handle proto.Handle, text string) (bool, error) {
	var res injectResult
	if err := c.call(ctx, "inject", injectParams{Handle: handle, Text: text}, &res); err != nil {
		return false, err
	}
	return res.Injected, nil
}

// Viewport reports the current page geometry and visible-content summary.
func (c *Client) Viewport(ctx context.Context) (proto.ViewportState, error) {
	var state proto.ViewportState
	if err := c.call(ctx, "viewport", nil, &state); err != nil {
		return proto.ViewportState{}, err
	}
	return state, nil
}

type scrollParams struct {
	AmountPx int `json:"amount_px"`
}

// ScrollBy scrolls the page by the given pixel amount.
func (c *Client) ScrollBy(ctx context.Context, amountPx int) error {
	return c.call(ctx, "scroll_by", scrollParams{AmountPx: amountPx}, nil)
}
