package schema

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRefresh_PopulatesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/schema/items" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "apikey" {
			t.Errorf("key = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []Item{
				{Defindex: DefindexRefined, Name: "Refined Metal", ItemClass: "craft_item"},
				{Defindex: 5021, Name: "Mann Co. Supply Crate Key"},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "apikey")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if !c.FetchedAt().IsZero() {
		t.Fatalf("fresh client reports a fetch time")
	}

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	it, ok := c.ItemByDefindex(DefindexRefined)
	if !ok || it.Name != "Refined Metal" {
		t.Fatalf("item = %+v %v", it, ok)
	}
	if got := c.ItemName(5021); got != "Mann Co. Supply Crate Key" {
		t.Fatalf("name = %q", got)
	}
	if got := c.ItemName(99999); got != "defindex 99999" {
		t.Fatalf("unknown name = %q", got)
	}
	if c.FetchedAt().IsZero() {
		t.Fatalf("fetch time not recorded")
	}
}

func TestRefresh_ErrorStatusKeepsOldSnapshot(t *testing.T) {
	fail := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			http.Error(w, "schema unavailable", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []Item{{Defindex: DefindexScrap, Name: "Scrap Metal"}},
		})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "")
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	fail = true
	if err := c.Refresh(context.Background()); err == nil {
		t.Fatalf("502 accepted")
	}
	if _, ok := c.ItemByDefindex(DefindexScrap); !ok {
		t.Fatalf("failed refresh wiped the snapshot")
	}
}
