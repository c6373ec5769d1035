package bot

import (
	"log"
	"time"
)

type botLogEvent struct {
	TsMs  int64  `json:"ts_ms"`
	Event string `json:"event"`

	OfferID  string `json:"offer_id,omitempty"`
	Partner  string `json:"partner,omitempty"`
	State    string `json:"state,omitempty"`
	OldState string `json:"old_state,omitempty"`

	Defindex int    `json:"defindex,omitempty"`
	Amount   int    `json:"amount,omitempty"`
	AssetID  uint64 `json:"asset_id,omitempty"`

	WaitMs int64 `json:"wait_ms,omitempty"`

	Ok  bool   `json:"ok,omitempty"`
	Err string `json:"err,omitempty"`
}

func (b *Bot) logEvent(ev botLogEvent) {
	if b.deps.Events == nil {
		return
	}
	ev.TsMs = time.Now().UnixMilli()
	if err := b.deps.Events.Append(ev); err != nil {
		log.Printf("[warn] event log write failed: %v", err)
	}
}
