package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Nicklason/tf2-automatic-sub001/internal/bot"
	"github.com/Nicklason/tf2-automatic-sub001/internal/config"
	"github.com/Nicklason/tf2-automatic-sub001/internal/gamecoord"
	"github.com/Nicklason/tf2-automatic-sub001/internal/inventory"
	"github.com/Nicklason/tf2-automatic-sub001/internal/jsonl"
	"github.com/Nicklason/tf2-automatic-sub001/internal/marketplace"
	"github.com/Nicklason/tf2-automatic-sub001/internal/persist"
	"github.com/Nicklason/tf2-automatic-sub001/internal/policy"
	"github.com/Nicklason/tf2-automatic-sub001/internal/pricing"
	"github.com/Nicklason/tf2-automatic-sub001/internal/schema"
	"github.com/Nicklason/tf2-automatic-sub001/internal/tradeoffer"
	"github.com/Nicklason/tf2-automatic-sub001/internal/websession"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	dataDir := flag.String("data", cfg.DataDir, "directory for persisted state")
	eventLog := flag.String("event-log", cfg.EventLog, "JSONL event log path (empty disables)")
	dryRun := flag.Bool("dry-run", cfg.DryRun, "run without a live game connection")
	flag.Parse()
	cfg.DataDir = *dataDir
	cfg.EventLog = *eventLog
	cfg.DryRun = *dryRun

	events := jsonl.New(cfg.EventLog)
	if events != nil {
		log.Printf("Event log: %s (JSONL)", cfg.EventLog)
		defer func() {
			if err := events.Close(); err != nil {
				log.Printf("[warn] event log close: %v", err)
			}
		}()
	}

	files, err := persist.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	trades, err := tradeoffer.NewClient(cfg.TradeAPIHost, cfg.TradeAPIKey)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	web := websession.New(trades.RefreshSession)

	inv := inventory.NewStore()

	// The live game-coordinator transport comes from the game client
	// connection, which this build does not carry; crafting always runs
	// against the loopback simulator.
	sim := gamecoord.NewSimTransport(inv)
	gc := gamecoord.New(sim)
	sim.Attach(gc)
	if cfg.DryRun {
		log.Printf("[cfg] dry-run: simulated game coordinator")
	} else {
		log.Printf("[warn] live game-coordinator transport not configured; crafting uses the simulator")
	}

	pricer, err := pricing.NewClient(cfg.PricingHost)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	var listings *marketplace.Registry
	var mkt *marketplace.Client
	if cfg.MarketplaceToken != "" {
		mkt, err = marketplace.NewClient(cfg.MarketplaceHost, cfg.MarketplaceToken)
		if err != nil {
			log.Fatalf("[fatal] %v", err)
		}
		listings = marketplace.NewRegistry(mkt, 0)
	} else {
		log.Printf("[cfg] no marketplace token; listings disabled")
	}

	schemaClient, err := schema.NewClient(cfg.SchemaHost, cfg.SchemaAPIKey)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	handlerPolicy := policy.NewPricing(pricer, files, policy.Options{
		KeyScrap:       cfg.KeyScrap,
		MinProfitScrap: cfg.MinProfitScrap,
	})

	b, err := bot.New(bot.Deps{
		Trades:   trades,
		Web:      web,
		GC:       gc,
		Inv:      inv,
		Files:    files,
		Listings: listings,
		Events:   events,
		AppID:    cfg.AppID,
	}, handlerPolicy)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b.Start(ctx)

	schemaCtx, schemaCancel := context.WithTimeout(ctx, 60*time.Second)
	if err := schemaClient.Refresh(schemaCtx); err != nil {
		log.Printf("[warn] schema refresh: %v", err)
	} else {
		b.HandleSchemaUpdated()
	}
	schemaCancel()

	if listings != nil {
		settled, cancelSettled := listings.SubscribeActionsSettled()
		defer cancelSettled()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case s := <-settled:
					b.HandleActionsSettled(s)
				}
			}
		}()

		go heartbeatLoop(ctx, mkt, b)
		go feedLoop(ctx, cfg, listings)
	}

	if err := b.BeforeLogin(ctx); err == nil {
		// The platform login client lives outside this build; in its
		// absence the session is considered up once the throttle clears.
		b.HandleLoginSuccess()
	}

	log.Printf("Listening…")

	sigCh := make(chan os.Signal, 8)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		b.Shutdown()
	case <-b.Done():
		return
	}

	select {
	case <-b.Done():
	case <-time.After(45 * time.Second):
		log.Printf("[warn] shutdown drain exceeded 45s, exiting anyway")
	}
}

func heartbeatLoop(ctx context.Context, mkt *marketplace.Client, b *bot.Bot) {
	t := time.NewTicker(90 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			hbCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := mkt.Heartbeat(hbCtx)
			cancel()
			if err != nil {
				log.Printf("[warn] marketplace heartbeat: %v", err)
			}
			b.HandleHeartbeat(err)
		}
	}
}

func feedLoop(ctx context.Context, cfg config.Config, listings *marketplace.Registry) {
	evs, errs := marketplace.StartFeed(ctx, cfg.MarketplaceWSURL, cfg.MarketplaceToken, marketplace.FeedOptions{})
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				return
			}
			log.Printf("[warn] marketplace feed: %v", err)
		case ev, ok := <-evs:
			if !ok {
				return
			}
			switch ev.Type {
			case "listing-delete":
				if ev.ID != "" {
					listings.RemoveListing(ev.ID)
				}
			default:
				// Other feed events are informational for now.
			}
		}
	}
}
