package handler

import (
	"strings"
	"testing"
	"time"

	"github.com/Nicklason/tf2-automatic-sub001/internal/offers"
	"github.com/Nicklason/tf2-automatic-sub001/internal/tradeoffer"
)

// basePolicy implements exactly the required event set.
type basePolicy struct {
	offerSeen chan *tradeoffer.Offer
	messages  []string
}

func newBasePolicy() *basePolicy {
	return &basePolicy{offerSeen: make(chan *tradeoffer.Offer, 1)}
}

func (p *basePolicy) OnRun(Control)                    {}
func (p *basePolicy) OnReady()                         {}
func (p *basePolicy) OnShutdown(done func())           { done() }
func (p *basePolicy) OnLoginThrottle(time.Duration)    {}
func (p *basePolicy) OnLoginSuccess()                  {}
func (p *basePolicy) OnLoginFailure(error)             {}
func (p *basePolicy) OnLoginKey(string)                {}
func (p *basePolicy) OnLoginAttempts([]time.Time)      {}
func (p *basePolicy) OnTradeOfferUpdated(offer *tradeoffer.Offer, old tradeoffer.State) {
}
func (p *basePolicy) OnNewTradeOffer(offer *tradeoffer.Offer, done func(offers.Action)) {
	p.offerSeen <- offer
	done(offers.ActionSkip)
}

func TestBind_AcceptsCompletePolicy(t *testing.T) {
	r := NewRegistry()
	b, err := r.Bind(newBasePolicy())
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if b == nil {
		t.Fatalf("expected bound handler")
	}
	if r.Handler() != b {
		t.Fatalf("registry should return the bound handler")
	}
}

// lacksReady is missing OnReady and OnLoginKey.
type lacksReady struct{ *basePolicy }

func (l *lacksReady) OnReady(extra int) {} // wrong signature does not count
func (l *lacksReady) OnLoginKey()       {} // wrong signature does not count

func TestBind_RejectsMissingRequiredEvents(t *testing.T) {
	// Shadowing the promoted methods with wrong signatures removes them
	// from the method set, so both must be reported missing.
	r := NewRegistry()
	_, err := r.Bind(&lacksReady{basePolicy: newBasePolicy()})
	if err == nil {
		t.Fatalf("expected bind error")
	}
	if !strings.Contains(err.Error(), "OnReady") || !strings.Contains(err.Error(), "OnLoginKey") {
		t.Fatalf("error should name every missing event, got: %v", err)
	}
}

func TestBind_RejectsNil(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Bind(nil); err == nil {
		t.Fatalf("expected bind error for nil policy")
	}
}

// collidingPolicy defines a control function of its own.
type collidingPolicy struct{ *basePolicy }

func (c *collidingPolicy) SmeltMetal(defindex, amount int) {}

func TestBind_RejectsControlCollision(t *testing.T) {
	r := NewRegistry()
	_, err := r.Bind(&collidingPolicy{basePolicy: newBasePolicy()})
	if err == nil {
		t.Fatalf("expected bind error")
	}
	if !strings.Contains(err.Error(), "SmeltMetal") {
		t.Fatalf("error should name the colliding function, got: %v", err)
	}
}

func TestBind_SecondBindFails(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Bind(newBasePolicy()); err != nil {
		t.Fatalf("first bind: %v", err)
	}
	if _, err := r.Bind(newBasePolicy()); err == nil {
		t.Fatalf("expected second bind to fail")
	}
}

// chattyPolicy adds one optional event.
type chattyPolicy struct{ *basePolicy }

func (c *chattyPolicy) OnMessage(partner, message string) {
	c.messages = append(c.messages, partner+": "+message)
}

func TestBind_OptionalEventsWiredOrNoop(t *testing.T) {
	r := NewRegistry()
	p := &chattyPolicy{basePolicy: newBasePolicy()}
	b, err := r.Bind(p)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	b.OnMessage("alice", "hi")
	if len(p.messages) != 1 || p.messages[0] != "alice: hi" {
		t.Fatalf("implemented optional event not dispatched: %#v", p.messages)
	}

	// Unimplemented optional events must be safe no-ops.
	b.OnHeartbeat(nil)
	b.OnSchemaUpdated()
	b.OnInventoryUpdated(3)
	b.OnCraftingQueueCompleted()
	b.OnOfferFetchError("1", nil)
}
