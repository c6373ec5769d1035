package websession

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubscribeRestored_ReceivesBroadcast(t *testing.T) {
	s := New(nil)

	ch, cancel := s.SubscribeRestored()
	defer cancel()

	s.NotifyRestored()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("restored signal never delivered")
	}
	if s.RestoredAt().IsZero() {
		t.Fatalf("RestoredAt not recorded")
	}
}

func TestSubscribeRestored_CancelStopsDelivery(t *testing.T) {
	s := New(nil)

	ch, cancel := s.SubscribeRestored()
	cancel()

	s.NotifyRestored()
	select {
	case <-ch:
		t.Fatalf("canceled subscription still delivered")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRequestRefresh_Deduplicates(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	s := New(func(ctx context.Context) error {
		calls.Add(1)
		<-release
		return nil
	})

	ch, cancel := s.SubscribeRestored()
	defer cancel()

	s.RequestRefresh(context.Background())
	s.RequestRefresh(context.Background())
	s.RequestRefresh(context.Background())
	close(release)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("refresh never completed")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("refresher ran %d times, want 1", got)
	}
}

func TestRequestRefresh_FailureDoesNotBroadcast(t *testing.T) {
	done := make(chan struct{})
	s := New(func(ctx context.Context) error {
		defer close(done)
		return errors.New("login failed")
	})

	ch, cancel := s.SubscribeRestored()
	defer cancel()

	s.RequestRefresh(context.Background())
	<-done

	select {
	case <-ch:
		t.Fatalf("failed refresh broadcast restored")
	case <-time.After(50 * time.Millisecond):
	}
}
