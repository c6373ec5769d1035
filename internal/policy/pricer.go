// Package policy holds the example pricing policy: value both sides of
// an offer against the external pricing service and accept anything
// that comes out ahead. It is the pluggable half of the handler
// contract; the engines know nothing about what lives here.
package policy

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Nicklason/tf2-automatic-sub001/internal/crafting"
	"github.com/Nicklason/tf2-automatic-sub001/internal/handler"
	"github.com/Nicklason/tf2-automatic-sub001/internal/offers"
	"github.com/Nicklason/tf2-automatic-sub001/internal/persist"
	"github.com/Nicklason/tf2-automatic-sub001/internal/pricing"
	"github.com/Nicklason/tf2-automatic-sub001/internal/tradeoffer"
)

// Pricer is the slice of the pricing client the policy needs.
type Pricer interface {
	GetPrice(ctx context.Context, sku string) (pricing.Price, error)
}

type Options struct {
	// KeyScrap converts key prices into scrap units (1 ref = 9 scrap).
	KeyScrap int
	// MinProfitScrap is the minimum edge, in scrap, to accept an offer.
	MinProfitScrap int
	// PriceTTL bounds how long a cached price is trusted.
	PriceTTL time.Duration
}

func (o Options) withDefaults() Options {
	if o.KeyScrap <= 0 {
		o.KeyScrap = 612
	}
	if o.MinProfitScrap < 0 {
		o.MinProfitScrap = 0
	}
	if o.PriceTTL <= 0 {
		o.PriceTTL = 10 * time.Minute
	}
	return o
}

type cachedPrice struct {
	price   pricing.Price
	fetched time.Time
}

// Pricing is the example policy handler.
type Pricing struct {
	pricer Pricer
	files  *persist.Store
	opts   Options

	mu    sync.Mutex
	ctrl  handler.Control
	cache map[string]cachedPrice
}

func NewPricing(pricer Pricer, files *persist.Store, opts Options) *Pricing {
	return &Pricing{
		pricer: pricer,
		files:  files,
		opts:   opts.withDefaults(),
		cache:  make(map[string]cachedPrice),
	}
}

// Required events.

func (p *Pricing) OnRun(ctrl handler.Control) {
	p.mu.Lock()
	p.ctrl = ctrl
	p.mu.Unlock()
}

func (p *Pricing) OnReady() {
	log.Printf("[info] policy: ready")
}

func (p *Pricing) OnShutdown(done func()) {
	done()
}

func (p *Pricing) OnLoginThrottle(wait time.Duration) {
	log.Printf("[info] policy: login throttled for %s", wait)
}

func (p *Pricing) OnLoginSuccess() {
	log.Printf("[info] policy: logged in")
}

func (p *Pricing) OnLoginFailure(err error) {
	log.Printf("[warn] policy: login failed: %v", err)
}

func (p *Pricing) OnLoginKey(string) {
	// The engine already persists the key; nothing extra to do.
}

func (p *Pricing) OnLoginAttempts(attempts []time.Time) {
	if p.files != nil {
		p.files.SaveLoginAttempts(attempts)
	}
}

func (p *Pricing) OnTradeOfferUpdated(offer *tradeoffer.Offer, oldState tradeoffer.State) {
	log.Printf("[info] policy: offer %s went %s -> %s", offer.ID, oldState, offer.State)
}

// OnNewTradeOffer values both sides and calls done with the verdict.
// An offer that only gives us items is a gift and always accepted; an
// item we cannot price on our side means we decline rather than guess.
func (p *Pricing) OnNewTradeOffer(offer *tradeoffer.Offer, done func(offers.Action)) {
	if len(offer.ItemsToGive) == 0 {
		log.Printf("[info] policy: offer %s is a gift, accepting", offer.ID)
		done(offers.ActionAccept)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ourValue, ok := p.valueAssets(ctx, offer.ItemsToGive, false)
	if !ok {
		log.Printf("[info] policy: offer %s asks for an unpriced item, declining", offer.ID)
		done(offers.ActionDecline)
		return
	}
	theirValue, _ := p.valueAssets(ctx, offer.ItemsToReceive, true)

	if theirValue >= ourValue+p.opts.MinProfitScrap {
		log.Printf("[info] policy: offer %s accepted (their=%d our=%d scrap)", offer.ID, theirValue, ourValue)
		done(offers.ActionAccept)
		return
	}
	log.Printf("[info] policy: offer %s declined (their=%d our=%d scrap)", offer.ID, theirValue, ourValue)
	done(offers.ActionDecline)
}

// Optional events.

func (p *Pricing) OnOfferFetchError(id string, err error) {
	log.Printf("[warn] policy: offer %s could not be fetched: %v", id, err)
}

func (p *Pricing) OnCraftingQueueCompleted() {
	log.Printf("[info] policy: crafting queue drained")
}

func (p *Pricing) OnCraftingCompleted(res crafting.CompletedCraft) {
	log.Printf("[info] policy: %s job consumed %d asset(s), gained %d", res.Job.Kind, len(res.Consumed), len(res.Gained))
}

func (p *Pricing) OnPollData(pd persist.PollData) {
	log.Printf("[info] policy: poll data restored (%d sent, %d received)", len(pd.Sent), len(pd.Received))
}

// valueAssets sums the value of assets in scrap units. For our side
// (buySide false) the sell price applies; for their side the buy
// price. ok is false when an asset on our side has no price.
func (p *Pricing) valueAssets(ctx context.Context, assets []tradeoffer.Asset, buySide bool) (int, bool) {
	total := 0
	for _, a := range assets {
		if a.SKU == "" {
			if !buySide {
				return 0, false
			}
			continue
		}
		price, err := p.price(ctx, a.SKU)
		if err != nil {
			if !buySide {
				return 0, false
			}
			continue
		}
		if buySide {
			total += p.scrap(price.Buy)
		} else {
			total += p.scrap(price.Sell)
		}
	}
	return total, true
}

func (p *Pricing) price(ctx context.Context, sku string) (pricing.Price, error) {
	p.mu.Lock()
	c, ok := p.cache[sku]
	p.mu.Unlock()
	if ok && time.Since(c.fetched) < p.opts.PriceTTL {
		return c.price, nil
	}

	price, err := p.pricer.GetPrice(ctx, sku)
	if err != nil {
		return pricing.Price{}, err
	}

	p.mu.Lock()
	p.cache[sku] = cachedPrice{price: price, fetched: time.Now()}
	p.mu.Unlock()
	return price, nil
}

func (p *Pricing) scrap(c pricing.Currencies) int {
	return c.Keys*p.opts.KeyScrap + int(c.Metal*9+0.5)
}
