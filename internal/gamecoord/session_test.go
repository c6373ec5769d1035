package gamecoord

import (
	"testing"
	"time"

	"github.com/Nicklason/tf2-automatic-sub001/internal/inventory"
	"github.com/Nicklason/tf2-automatic-sub001/internal/schema"
)

func TestSession_ConnectionState(t *testing.T) {
	s := New(nil)
	if s.IsConnectedToGame(440) {
		t.Fatalf("fresh session reports connected")
	}

	s.HandleConnected(440)
	if !s.IsConnectedToGame(440) {
		t.Fatalf("not connected after handshake")
	}
	if s.IsConnectedToGame(570) {
		t.Fatalf("connected to the wrong app id")
	}

	s.HandleDisconnected()
	if s.IsConnectedToGame(440) {
		t.Fatalf("still connected after drop")
	}
}

func TestSession_FanOutAndCancel(t *testing.T) {
	s := New(nil)

	a, cancelA := s.SubscribeConnected()
	b, cancelB := s.SubscribeConnected()
	defer cancelA()
	cancelB()

	s.HandleConnected(440)

	select {
	case <-a:
	case <-time.After(time.Second):
		t.Fatalf("live subscriber missed the event")
	}
	select {
	case <-b:
		t.Fatalf("canceled subscriber got the event")
	default:
	}
}

func TestSession_CraftResultDelivery(t *testing.T) {
	s := New(nil)

	ch, cancel := s.SubscribeCraftComplete()
	defer cancel()

	want := CraftResult{
		Recipe: schema.DefindexRefined,
		ItemsGained: []inventory.Item{
			{AssetID: 1, Defindex: schema.DefindexReclaimed},
		},
	}
	s.HandleCraftResult(want)

	select {
	case got := <-ch:
		if got.Recipe != want.Recipe || len(got.ItemsGained) != 1 {
			t.Fatalf("result = %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("craft result never delivered")
	}
}

func TestSession_NoTransportErrors(t *testing.T) {
	s := New(nil)
	if err := s.RequestGame(440); err == nil {
		t.Fatalf("request game without transport should fail")
	}
	if err := s.Craft([]uint64{1}); err == nil {
		t.Fatalf("craft without transport should fail")
	}
	if err := s.Craft(nil); err == nil {
		t.Fatalf("craft with no inputs should fail")
	}
	if err := s.UseItem(1); err == nil {
		t.Fatalf("use without transport should fail")
	}
}

func TestSimTransport_SmeltProducesThree(t *testing.T) {
	inv := inventory.NewStore()
	inv.Replace([]inventory.Item{
		{AssetID: 100, Defindex: schema.DefindexRefined, SKU: schema.MetalSKU(schema.DefindexRefined), Tradable: true},
	})

	sim := NewSimTransport(inv)
	s := New(sim)
	sim.Attach(s)

	ch, cancel := s.SubscribeCraftComplete()
	defer cancel()

	if err := s.Craft([]uint64{100}); err != nil {
		t.Fatalf("craft: %v", err)
	}

	select {
	case res := <-ch:
		if res.Recipe != schema.DefindexRefined {
			t.Fatalf("recipe = %d", res.Recipe)
		}
		if len(res.ItemsGained) != 3 {
			t.Fatalf("smelt gained %d items", len(res.ItemsGained))
		}
		for _, it := range res.ItemsGained {
			if it.Defindex != schema.DefindexReclaimed {
				t.Fatalf("gained defindex %d", it.Defindex)
			}
			if it.AssetID < 1<<62 {
				t.Fatalf("synthesized id %d collides with real id space", it.AssetID)
			}
		}
	case <-time.After(time.Second):
		t.Fatalf("sim never answered the craft")
	}
}

func TestSimTransport_CombineProducesOne(t *testing.T) {
	inv := inventory.NewStore()
	inv.Replace([]inventory.Item{
		{AssetID: 1, Defindex: schema.DefindexScrap, SKU: schema.MetalSKU(schema.DefindexScrap), Tradable: true},
		{AssetID: 2, Defindex: schema.DefindexScrap, SKU: schema.MetalSKU(schema.DefindexScrap), Tradable: true},
		{AssetID: 3, Defindex: schema.DefindexScrap, SKU: schema.MetalSKU(schema.DefindexScrap), Tradable: true},
	})

	sim := NewSimTransport(inv)
	s := New(sim)
	sim.Attach(s)

	ch, cancel := s.SubscribeCraftComplete()
	defer cancel()

	if err := s.Craft([]uint64{1, 2, 3}); err != nil {
		t.Fatalf("craft: %v", err)
	}

	select {
	case res := <-ch:
		if len(res.ItemsGained) != 1 || res.ItemsGained[0].Defindex != schema.DefindexReclaimed {
			t.Fatalf("combine gained %+v", res.ItemsGained)
		}
	case <-time.After(time.Second):
		t.Fatalf("sim never answered the craft")
	}
}

func TestSimTransport_RejectsBadCrafts(t *testing.T) {
	inv := inventory.NewStore()
	inv.Replace([]inventory.Item{
		{AssetID: 1, Defindex: schema.DefindexScrap, SKU: schema.MetalSKU(schema.DefindexScrap), Tradable: true},
		{AssetID: 2, Defindex: schema.DefindexRefined, SKU: schema.MetalSKU(schema.DefindexRefined), Tradable: true},
	})

	sim := NewSimTransport(inv)
	s := New(sim)
	sim.Attach(s)

	if err := s.Craft([]uint64{1}); err == nil {
		t.Fatalf("smelting scrap should fail")
	}
	if err := s.Craft([]uint64{2, 2, 2}); err == nil {
		t.Fatalf("combining refined should fail")
	}
	if err := s.Craft([]uint64{999}); err == nil {
		t.Fatalf("unknown asset should fail")
	}
}

func TestSimTransport_UseEmitsRemoval(t *testing.T) {
	inv := inventory.NewStore()
	sim := NewSimTransport(inv)
	s := New(sim)
	sim.Attach(s)

	ch, cancel := s.SubscribeItemRemoved()
	defer cancel()

	if err := s.UseItem(42); err != nil {
		t.Fatalf("use: %v", err)
	}
	select {
	case id := <-ch:
		if id != 42 {
			t.Fatalf("removed %d", id)
		}
	case <-time.After(time.Second):
		t.Fatalf("removal never delivered")
	}
}

func TestSimTransport_GameRequestsDriveConnectionState(t *testing.T) {
	inv := inventory.NewStore()
	sim := NewSimTransport(inv)
	s := New(sim)
	sim.Attach(s)

	if err := s.RequestGame(440); err != nil {
		t.Fatalf("request game: %v", err)
	}
	if !s.IsConnectedToGame(440) {
		t.Fatalf("sim did not connect")
	}
	if err := s.RequestGame(0); err != nil {
		t.Fatalf("release game: %v", err)
	}
	if s.IsConnectedToGame(440) {
		t.Fatalf("sim did not disconnect")
	}
}
