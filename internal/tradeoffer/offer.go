package tradeoffer

import "time"

// State is the lifecycle state of a trade offer as reported by the
// platform. Only StateActive offers can still be acted on.
type State int

const (
	StateInvalid                  State = 1
	StateActive                   State = 2
	StateAccepted                 State = 3
	StateCountered                State = 4
	StateExpired                  State = 5
	StateCanceled                 State = 6
	StateDeclined                 State = 7
	StateInvalidItems             State = 8
	StateCreatedNeedsConfirmation State = 9
	StateCanceledBySecondFactor   State = 10
	StateInEscrow                 State = 11
)

func (s State) String() string {
	switch s {
	case StateInvalid:
		return "invalid"
	case StateActive:
		return "active"
	case StateAccepted:
		return "accepted"
	case StateCountered:
		return "countered"
	case StateExpired:
		return "expired"
	case StateCanceled:
		return "canceled"
	case StateDeclined:
		return "declined"
	case StateInvalidItems:
		return "invalid-items"
	case StateCreatedNeedsConfirmation:
		return "needs-confirmation"
	case StateCanceledBySecondFactor:
		return "canceled-2fa"
	case StateInEscrow:
		return "in-escrow"
	default:
		return "unknown"
	}
}

// Actionable reports whether the offer can still be accepted or declined.
func (s State) Actionable() bool { return s == StateActive }

// Asset is one item referenced by a trade offer.
type Asset struct {
	AssetID uint64 `json:"assetid,string"`
	SKU     string `json:"sku,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Offer is the authoritative view of a trade offer.
type Offer struct {
	ID             string    `json:"id"`
	Partner        string    `json:"partner"`
	State          State     `json:"state"`
	Message        string    `json:"message,omitempty"`
	ItemsToGive    []Asset   `json:"items_to_give"`
	ItemsToReceive []Asset   `json:"items_to_receive"`
	IsOurOffer     bool      `json:"is_our_offer"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
