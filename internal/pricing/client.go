package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultURL = "https://api.prices.tf"

// Currencies is a price expressed in the item economy's two units.
type Currencies struct {
	Keys  int     `json:"keys"`
	Metal float64 `json:"metal"`
}

// Price is the pricing service's view of one SKU.
type Price struct {
	SKU       string     `json:"sku"`
	Name      string     `json:"name,omitempty"`
	Buy       Currencies `json:"buy"`
	Sell      Currencies `json:"sell"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Client is a thin wrapper over the external pricing service.
type Client struct {
	host       string
	httpClient *http.Client
}

func NewClient(host string) (*Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultURL
	}
	host = strings.TrimRight(host, "/")

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("pricing url parse %q: %w", host, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("pricing url must be http(s), got %q", host)
	}

	return &Client{
		host: host,
		httpClient: &http.Client{
			Timeout: 12 * time.Second,
		},
	}, nil
}

// GetPrice fetches the current price for one SKU.
func (c *Client) GetPrice(ctx context.Context, sku string) (Price, error) {
	body, err := c.get(ctx, "/prices/"+url.PathEscape(sku))
	if err != nil {
		return Price{}, err
	}

	var p Price
	if err := json.Unmarshal(body, &p); err != nil {
		return Price{}, fmt.Errorf("price %s decode: %w", sku, err)
	}
	if p.SKU == "" {
		p.SKU = sku
	}
	return p, nil
}

type snapshotResponse struct {
	Items []Price `json:"items"`
}

// Snapshot fetches the full pricelist.
func (c *Client) Snapshot(ctx context.Context) ([]Price, error) {
	body, err := c.get(ctx, "/prices")
	if err != nil {
		return nil, err
	}

	var resp snapshotResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("price snapshot decode: %w", err)
	}
	return resp.Items, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pricing get %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("pricing read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pricing get %s: status %d: %s", path, resp.StatusCode, trimBody(body))
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
