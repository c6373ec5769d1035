package gamecoord

import (
	"fmt"
	"sync/atomic"

	"github.com/Nicklason/tf2-automatic-sub001/internal/inventory"
	"github.com/Nicklason/tf2-automatic-sub001/internal/schema"
)

// SimTransport is a loopback transport for dry runs: every request is
// acknowledged immediately with a synthesized coordinator event, so
// the crafting queue can be exercised without a game connection.
type SimTransport struct {
	session *Session
	inv     *inventory.Store
	nextID  atomic.Uint64
}

func NewSimTransport(inv *inventory.Store) *SimTransport {
	t := &SimTransport{inv: inv}
	t.nextID.Store(1 << 62) // keep synthesized ids away from real ones
	return t
}

// Attach wires the transport to the session whose events it synthesizes.
func (t *SimTransport) Attach(s *Session) { t.session = s }

func (t *SimTransport) SetPlayingGame(appID uint32) error {
	if t.session == nil {
		return fmt.Errorf("sim transport not attached")
	}
	if appID == 0 {
		t.session.HandleDisconnected()
		return nil
	}
	t.session.HandleConnected(appID)
	return nil
}

// Craft infers the recipe from the inputs: one metal unit smelts down,
// three combine up. The synthesized outputs land in the craft result
// exactly as the coordinator would report them.
func (t *SimTransport) Craft(assetIDs []uint64) error {
	if t.session == nil {
		return fmt.Errorf("sim transport not attached")
	}
	if len(assetIDs) == 0 {
		return fmt.Errorf("sim craft: no inputs")
	}

	it, ok := t.inv.FindByAssetID(assetIDs[0])
	if !ok {
		return fmt.Errorf("sim craft: unknown asset %d", assetIDs[0])
	}

	var outDefindex, outCount int
	switch len(assetIDs) {
	case 1:
		d, ok := schema.SmeltResult(it.Defindex)
		if !ok {
			return fmt.Errorf("sim craft: cannot smelt defindex %d", it.Defindex)
		}
		outDefindex, outCount = d, 3
	case 3:
		d, ok := schema.CombineResult(it.Defindex)
		if !ok {
			return fmt.Errorf("sim craft: cannot combine defindex %d", it.Defindex)
		}
		outDefindex, outCount = d, 1
	default:
		return fmt.Errorf("sim craft: unsupported input count %d", len(assetIDs))
	}

	gained := make([]inventory.Item, 0, outCount)
	for i := 0; i < outCount; i++ {
		gained = append(gained, inventory.Item{
			AssetID:  t.nextID.Add(1),
			Defindex: outDefindex,
			SKU:      schema.MetalSKU(outDefindex),
			Tradable: true,
		})
	}

	go t.session.HandleCraftResult(CraftResult{Recipe: it.Defindex, ItemsGained: gained})
	return nil
}

func (t *SimTransport) UseItem(assetID uint64) error {
	if t.session == nil {
		return fmt.Errorf("sim transport not attached")
	}
	go t.session.HandleItemRemoved(assetID)
	return nil
}
