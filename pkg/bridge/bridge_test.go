package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedpilot/pkg/proto"
)

// fakePage is a scripted page-side peer. handle maps a method name to the
// result (or error string) the page returns.
type fakePage struct {
	handle map[string]func(params json.RawMessage) (any, string)
	// sendEvent, when set, pushes one event frame before serving calls.
	sendEvent *proto.PageEvent
}

func (p *fakePage) serve(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{"feedpilot"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")

		ctx := r.Context()
		if p.sendEvent != nil {
			data, _ := json.Marshal(frame{Event: p.sendEvent})
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var req frame
			if err := json.Unmarshal(data, &req); err != nil {
				return
			}

			resp := frame{ID: req.ID}
			if fn, ok := p.handle[req.Method]; ok {
				result, errMsg := fn(req.Params)
				if errMsg != "" {
					resp.Error = errMsg
				} else if result != nil {
					resp.Result, _ = json.Marshal(result)
				}
			} else {
				resp.Error = "unknown method " + req.Method
			}

			out, _ := json.Marshal(&resp)
			if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
				return
			}
		}
	}))
}

func dialFake(t *testing.T, page *fakePage) *Client {
	t.Helper()
	srv := page.serve(t)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := Dial(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestExtractRoundTrip(t *testing.T) {
	page := &fakePage{handle: map[string]func(json.RawMessage) (any, string){
		"extract": func(params json.RawMessage) (any, string) {
			var p extractParams
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, err.Error()
			}
			return extractResult{Found: true, Item: &proto.ContentItem{
				ID:     "item-" + p.Handle.Ref,
				Author: "someone",
				Text:   "a plain English post",
			}}, ""
		},
	}}
	client := dialFake(t, page)

	item, err := client.Extract(context.Background(), proto.Handle{Ref: "42"})
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "item-42", item.ID)
	assert.Equal(t, proto.LangEnglish, item.Language)
}

func TestExtractMissReturnsNilNil(t *testing.T) {
	page := &fakePage{handle: map[string]func(json.RawMessage) (any, string){
		"extract": func(json.RawMessage) (any, string) {
			return extractResult{Found: false}, ""
		},
	}}
	client := dialFake(t, page)

	item, err := client.Extract(context.Background(), proto.Handle{Ref: "gone"})
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestPageErrorSurfacesAsCallError(t *testing.T) {
	page := &fakePage{handle: map[string]func(json.RawMessage) (any, string){
		"like": func(json.RawMessage) (any, string) {
			return nil, "no like affordance"
		},
	}}
	client := dialFake(t, page)

	err := client.Like(context.Background(), proto.Handle{Ref: "1"}, false)
	require.ErrorContains(t, err, "no like affordance")
}

func TestInjectAndScrollAndViewport(t *testing.T) {
	var scrolled int
	page := &fakePage{handle: map[string]func(json.RawMessage) (any, string){
		"inject": func(params json.RawMessage) (any, string) {
			var p injectParams
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, err.Error()
			}
			return injectResult{Injected: p.Text != ""}, ""
		},
		"scroll_by": func(params json.RawMessage) (any, string) {
			var p scrollParams
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, err.Error()
			}
			scrolled = p.AmountPx
			return nil, ""
		},
		"viewport": func(json.RawMessage) (any, string) {
			return proto.ViewportState{
				ScrollPosition:   100,
				ViewportHeight:   800,
				DocumentHeight:   5000,
				VisibleItemCount: 3,
			}, ""
		},
	}}
	client := dialFake(t, page)
	ctx := context.Background()

	ok, err := client.Inject(ctx, proto.Handle{Ref: "1"}, "nice post")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, client.ScrollBy(ctx, 450))
	assert.Equal(t, 450, scrolled)

	state, err := client.Viewport(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(5000), state.DocumentHeight)
	assert.Equal(t, 3, state.VisibleItemCount)
}

func TestEventFrameReachesChannel(t *testing.T) {
	page := &fakePage{
		handle: map[string]func(json.RawMessage) (any, string){},
		sendEvent: &proto.PageEvent{
			Type:   proto.EventContentVisible,
			Handle: proto.Handle{Ref: "post-7"},
		},
	}
	client := dialFake(t, page)

	select {
	case event := <-client.Events():
		assert.Equal(t, proto.EventContentVisible, event.Type)
		assert.Equal(t, "post-7", event.Handle.Ref)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestCallAfterCloseFails(t *testing.T) {
	page := &fakePage{handle: map[string]func(json.RawMessage) (any, string){}}
	client := dialFake(t, page)

	require.NoError(t, client.Close())
	err := client.ScrollBy(context.Background(), 100)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEventsChannelClosesOnShutdown(t *testing.T) {
	page := &fakePage{handle: map[string]func(json.RawMessage) (any, string){}}
	client := dialFake(t, page)

	require.NoError(t, client.Close())

	select {
	case _, open := <-client.Events():
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel did not close")
	}
}

func TestCallHonorsContextCancellation(t *testing.T) {
	// A page that never answers.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	client, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Viewport(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
