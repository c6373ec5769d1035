package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const DefaultFeedURL = "wss://ws.backpack.tf/events"

const DefaultPingInterval = 30 * time.Second

// Event is one marketplace feed message. Payload is left raw so the
// consumer can decode based on Type.
type Event struct {
	Type    string          `json:"event"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type FeedOptions struct {
	PingInterval time.Duration

	BackoffMin time.Duration
	BackoffMax time.Duration

	OutBuffer int
}

func (o FeedOptions) withDefaults() FeedOptions {
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.BackoffMin <= 0 {
		o.BackoffMin = 500 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 15 * time.Second
	}
	if o.OutBuffer <= 0 {
		o.OutBuffer = 256
	}
	return o
}

// StartFeed connects to the marketplace event websocket and emits
// decoded events, reconnecting with jittered backoff until ctx is done.
func StartFeed(ctx context.Context, url, token string, opts FeedOptions) (<-chan Event, <-chan error) {
	opts = opts.withDefaults()
	if url == "" {
		url = DefaultFeedURL
	}

	out := make(chan Event, opts.OutBuffer)
	errs := make(chan error, 16)

	go func() {
		defer close(out)
		defer close(errs)

		backoff := opts.BackoffMin
		for {
			if ctx.Err() != nil {
				return
			}

			hdr := map[string][]string{}
			if token != "" {
				hdr["Authorization"] = []string{"Token " + token}
			}
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, hdr)
			if err != nil {
				emitErrNonBlocking(errs, fmt.Errorf("feed dial: %w", err))
				sleepWithJitter(ctx, backoff)
				backoff = nextBackoff(backoff, opts.BackoffMax)
				continue
			}

			backoff = opts.BackoffMin

			if err := runFeedSession(ctx, conn, opts.PingInterval, out, errs); err != nil && ctx.Err() == nil {
				emitErrNonBlocking(errs, err)
			}

			_ = conn.Close()
			if ctx.Err() != nil {
				return
			}
			sleepWithJitter(ctx, backoff)
			backoff = nextBackoff(backoff, opts.BackoffMax)
		}
	}()

	return out, errs
}

func runFeedSession(
	ctx context.Context,
	conn *websocket.Conn,
	pingInterval time.Duration,
	out chan<- Event,
	errs chan<- error,
) error {
	if conn == nil {
		return fmt.Errorf("feed session: nil conn")
	}

	var writeMu sync.Mutex
	stop := make(chan struct{})
	var stopOnce sync.Once
	stopAll := func() { stopOnce.Do(func() { close(stop) }) }

	go func() {
		defer stopAll()
		t := time.NewTicker(pingInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-t.C:
				writeMu.Lock()
				_ = conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
				werr := conn.WriteMessage(websocket.PingMessage, nil)
				writeMu.Unlock()
				if werr != nil {
					emitErrNonBlocking(errs, fmt.Errorf("feed ping: %w", werr))
					_ = conn.Close()
					return
				}
			}
		}
	}()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			stopAll()
			if errors.Is(err, websocket.ErrCloseSent) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("feed read: %w", err)
		}

		if typ != websocket.TextMessage || len(msg) == 0 {
			continue
		}

		// Batched frames arrive as a JSON array of events.
		if msg[0] == '[' {
			var evs []Event
			if err := json.Unmarshal(msg, &evs); err != nil {
				emitErrNonBlocking(errs, fmt.Errorf("feed decode: %w", err))
				continue
			}
			for _, ev := range evs {
				select {
				case out <- ev:
				default:
				}
			}
			continue
		}

		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			emitErrNonBlocking(errs, fmt.Errorf("feed decode: %w", err))
			continue
		}
		select {
		case out <- ev:
		default:
		}
	}
}

func emitErrNonBlocking(ch chan<- error, err error) {
	if err == nil {
		return
	}
	select {
	case ch <- err:
	default:
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

func sleepWithJitter(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	j := int64(d) / 7
	if j > 0 {
		d = time.Duration(int64(d) + rand.Int63n(2*j+1) - j)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
