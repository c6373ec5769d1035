// Package handler binds the single policy handler the bot runs with.
//
// The policy object is probed at bind time: every required event must
// be present, recognized optional events are wired through, anything
// missing gets a no-op, and a candidate that defines one of the
// engine's control functions is rejected outright. Engines talk to the
// policy only through the resulting Bound value, and the policy talks
// back only through the Control capability it receives in OnRun.
package handler

import (
	"context"
	"time"

	"github.com/Nicklason/tf2-automatic-sub001/internal/crafting"
	"github.com/Nicklason/tf2-automatic-sub001/internal/inventory"
	"github.com/Nicklason/tf2-automatic-sub001/internal/marketplace"
	"github.com/Nicklason/tf2-automatic-sub001/internal/offers"
	"github.com/Nicklason/tf2-automatic-sub001/internal/persist"
	"github.com/Nicklason/tf2-automatic-sub001/internal/tradeoffer"
)

// Control is the capability surface the engine grafts into the policy.
// Policy code calls back into the bot through this, never through a
// direct reference to the engines.
type Control interface {
	Shutdown()
	AcceptOffer(ctx context.Context, id string) error
	DeclineOffer(ctx context.Context, id string) error
	SendOffer(ctx context.Context, partner, message string, give, receive []uint64) (string, error)
	GetInventory() *inventory.Store
	SmeltMetal(defindex, amount int)
	CombineMetal(defindex, amount int)
	UseItem(assetID uint64)
	SetPollData(pd persist.PollData)
	SetLoginAttempts(attempts []time.Time)
}

// Handler is the required event set every policy must implement.
type Handler interface {
	OnRun(ctrl Control)
	OnReady()
	OnShutdown(done func())
	OnLoginThrottle(wait time.Duration)
	OnLoginSuccess()
	OnLoginFailure(err error)
	OnLoginKey(key string)
	OnNewTradeOffer(offer *tradeoffer.Offer, done func(offers.Action))
	OnTradeOfferUpdated(offer *tradeoffer.Offer, oldState tradeoffer.State)
	OnLoginAttempts(attempts []time.Time)
}

// Optional event interfaces. A policy implements the ones it cares
// about; the rest default to no-ops at bind time.
type (
	MessageObserver interface {
		OnMessage(partner, message string)
	}
	FriendObserver interface {
		OnFriendRelationship(partner string, relationship int)
	}
	OfferFetchErrorObserver interface {
		OnOfferFetchError(id string, err error)
	}
	OfferAcceptErrorObserver interface {
		OnOfferAcceptError(id string, err error)
	}
	OfferDeclineErrorObserver interface {
		OnOfferDeclineError(id string, err error)
	}
	InventoryObserver interface {
		OnInventoryUpdated(count int)
	}
	CraftingObserver interface {
		OnCraftingCompleted(res crafting.CompletedCraft)
	}
	CraftingQueueObserver interface {
		OnCraftingQueueCompleted()
	}
	PollDataObserver interface {
		OnPollData(pd persist.PollData)
	}
	SchemaObserver interface {
		OnSchemaUpdated()
	}
	HeartbeatObserver interface {
		OnHeartbeat(err error)
	}
	ListingsObserver interface {
		OnListingsChanged(count int)
	}
	ActionsObserver interface {
		OnActionsSettled(settled marketplace.ActionsSettled)
	}
)
