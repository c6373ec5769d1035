// Package marketplace manages the bot's buy/sell listing feed on the
// third-party marketplace: an HTTP client for listing actions, a local
// registry that batches create/remove actions, and a websocket feed of
// marketplace events.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultURL = "https://api.backpack.tf"

// Intent is the direction of a listing.
type Intent string

const (
	IntentBuy  Intent = "buy"
	IntentSell Intent = "sell"
)

// Listing is one buy or sell entry on the marketplace.
type Listing struct {
	ID      string  `json:"id"`
	SKU     string  `json:"sku"`
	Intent  Intent  `json:"intent"`
	Keys    int     `json:"keys"`
	Metal   float64 `json:"metal"`
	Details string  `json:"details,omitempty"`
	AssetID uint64  `json:"assetid,omitempty,string"`
}

// Client is the HTTP half of the marketplace integration.
type Client struct {
	host       string
	token      string
	httpClient *http.Client
}

func NewClient(host, token string) (*Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultURL
	}
	host = strings.TrimRight(host, "/")

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("marketplace url parse %q: %w", host, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("marketplace url must be http(s), got %q", host)
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("marketplace token required")
	}

	return &Client{
		host:  host,
		token: token,
		httpClient: &http.Client{
			Timeout: 12 * time.Second,
		},
	}, nil
}

type createBatchRequest struct {
	Listings []Listing `json:"listings"`
}

type createBatchResponse struct {
	Created []Listing `json:"created"`
}

// CreateListings submits a batch of listings and returns them with the
// ids the marketplace assigned.
func (c *Client) CreateListings(ctx context.Context, listings []Listing) ([]Listing, error) {
	if len(listings) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(createBatchRequest{Listings: listings})
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodPost, "/v2/classifieds/listings/batch", b)
	if err != nil {
		return nil, err
	}
	var resp createBatchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("create listings decode: %w", err)
	}
	return resp.Created, nil
}

type deleteBatchRequest struct {
	IDs []string `json:"listing_ids"`
}

// DeleteListings removes listings by id.
func (c *Client) DeleteListings(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	b, err := json.Marshal(deleteBatchRequest{IDs: ids})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodDelete, "/v2/classifieds/listings/batch", b)
	return err
}

// Heartbeat tells the marketplace the bot is alive so listings stay
// visible.
func (c *Client) Heartbeat(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/v2/agent/pulse", nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.host+path, rd)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Token "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketplace %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("marketplace read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("marketplace %s %s: status %d: %s", method, path, resp.StatusCode, trimBody(body))
	}
	return body, nil
}

func trimBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "…"
	}
	return s
}
