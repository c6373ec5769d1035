package marketplace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStartFeed_DecodesSingleAndBatchedFrames(t *testing.T) {
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token tok" {
			t.Errorf("auth = %q", got)
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"listing-update","id":"a"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`[{"event":"listing-delete","id":"b"},{"event":"listing-delete","id":"c"}]`))

		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	evs, _ := StartFeed(ctx, wsURL(srv), "tok", FeedOptions{})

	want := []struct{ typ, id string }{
		{"listing-update", "a"},
		{"listing-delete", "b"},
		{"listing-delete", "c"},
	}
	for i, w := range want {
		select {
		case ev := <-evs:
			if ev.Type != w.typ || ev.ID != w.id {
				t.Fatalf("event %d = %+v, want %+v", i, ev, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("event %d never arrived", i)
		}
	}
}

func TestStartFeed_ReconnectsAfterDrop(t *testing.T) {
	up := websocket.Upgrader{}
	conns := make(chan struct{}, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- struct{}{}
		conn.Close() // drop immediately, forcing a reconnect
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartFeed(ctx, wsURL(srv), "", FeedOptions{
		BackoffMin: 5 * time.Millisecond,
		BackoffMax: 10 * time.Millisecond,
	})

	for i := 0; i < 2; i++ {
		select {
		case <-conns:
		case <-time.After(2 * time.Second):
			t.Fatalf("connection %d never arrived", i)
		}
	}
}

func TestStartFeed_ClosesChannelsOnCancel(t *testing.T) {
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	evs, errs := StartFeed(ctx, wsURL(srv), "", FeedOptions{})

	time.Sleep(50 * time.Millisecond) // let the dial land
	cancel()

	deadline := time.After(2 * time.Second)
	for evs != nil || errs != nil {
		select {
		case _, ok := <-evs:
			if !ok {
				evs = nil
			}
		case _, ok := <-errs:
			if !ok {
				errs = nil
			}
		case <-deadline:
			t.Fatalf("feed channels never closed")
		}
	}
}
