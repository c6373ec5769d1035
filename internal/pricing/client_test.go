package pricing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient_DefaultsAndValidation(t *testing.T) {
	c, err := NewClient("")
	if err != nil {
		t.Fatalf("default host rejected: %v", err)
	}
	if c.host != DefaultURL {
		t.Fatalf("host = %q", c.host)
	}
	if _, err := NewClient("ftp://prices"); err == nil {
		t.Fatalf("non-http scheme accepted")
	}
}

func TestGetPrice_Decodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prices/5002;6" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Price{
			SKU:       "5002;6",
			Name:      "Refined Metal",
			Buy:       Currencies{Metal: 1},
			Sell:      Currencies{Metal: 1},
			UpdatedAt: time.Unix(1_700_000_000, 0).UTC(),
		})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	p, err := c.GetPrice(context.Background(), "5002;6")
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	if p.Name != "Refined Metal" || p.Sell.Metal != 1 {
		t.Fatalf("price = %+v", p)
	}
}

func TestGetPrice_FillsMissingSKU(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"name": "Key"})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	p, err := c.GetPrice(context.Background(), "5021;6")
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	if p.SKU != "5021;6" {
		t.Fatalf("sku = %q", p.SKU)
	}
}

func TestGetPrice_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such sku", http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	if _, err := c.GetPrice(context.Background(), "0;0"); err == nil {
		t.Fatalf("404 accepted")
	}
}

func TestSnapshot_DecodesList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prices" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []Price{{SKU: "5002;6"}, {SKU: "5021;6"}},
		})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	items, err := c.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
}
