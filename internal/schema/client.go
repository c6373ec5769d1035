package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const DefaultURL = "https://schema.autobot.tf"

// Client fetches the game item schema from the schema lookup service
// and serves defindex lookups from a cached snapshot.
type Client struct {
	host       string
	apiKey     string
	httpClient *http.Client

	mu    sync.RWMutex
	items map[int]Item
	fetch time.Time
}

type Item struct {
	Defindex  int    `json:"defindex"`
	Name      string `json:"item_name"`
	ItemClass string `json:"item_class"`
	ItemSlot  string `json:"item_slot,omitempty"`
	CraftType string `json:"craft_material_type,omitempty"`
}

func NewClient(host, apiKey string) (*Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultURL
	}
	host = strings.TrimRight(host, "/")

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("schema url parse %q: %w", host, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("schema url must be http(s), got %q", host)
	}

	return &Client{
		host:   host,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

type schemaResponse struct {
	Items []Item `json:"items"`
}

// Refresh downloads the full item schema and replaces the cached snapshot.
func (c *Client) Refresh(ctx context.Context) error {
	u := c.host + "/schema/items"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		q := req.URL.Query()
		q.Set("key", c.apiKey)
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("schema fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("schema read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("schema fetch: status %d: %s", resp.StatusCode, snippet(body))
	}

	var parsed schemaResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("schema decode: %w", err)
	}

	items := make(map[int]Item, len(parsed.Items))
	for _, it := range parsed.Items {
		items[it.Defindex] = it
	}

	c.mu.Lock()
	c.items = items
	c.fetch = time.Now()
	c.mu.Unlock()
	return nil
}

// ItemByDefindex looks up an item in the cached snapshot.
func (c *Client) ItemByDefindex(defindex int) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.items[defindex]
	return it, ok
}

// ItemName returns the schema name for a defindex, or a placeholder
// when the defindex is unknown or the schema has not been fetched.
func (c *Client) ItemName(defindex int) string {
	if it, ok := c.ItemByDefindex(defindex); ok {
		return it.Name
	}
	return fmt.Sprintf("defindex %d", defindex)
}

// FetchedAt reports when the cached snapshot was last refreshed.
func (c *Client) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetch
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "…"
	}
	return s
}
