package tradeoffer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrOfferGone is returned when the platform reports that an offer no
// longer exists. Callers treat it as a benign completion, not a failure.
var ErrOfferGone = errors.New("trade offer no longer exists")

// ErrNotLoggedIn is returned when the web session has expired. Callers
// re-authenticate and retry.
var ErrNotLoggedIn = errors.New("not logged in")

// Client is a thin wrapper over the trade-offer API of the platform.
type Client struct {
	host       string
	apiKey     string
	httpClient *http.Client
}

func NewClient(host, apiKey string) (*Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("trade api host required")
	}
	host = strings.TrimRight(host, "/")

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("trade api url parse %q: %w", host, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("trade api url must be http(s), got %q", host)
	}

	return &Client{
		host:   host,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 12 * time.Second,
		},
	}, nil
}

// GetOffer fetches the authoritative state of one offer.
func (c *Client) GetOffer(ctx context.Context, id string) (*Offer, error) {
	body, err := c.do(ctx, http.MethodGet, "/trade/v1/offers/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var off Offer
	if err := json.Unmarshal(body, &off); err != nil {
		return nil, fmt.Errorf("offer %s decode: %w", id, err)
	}
	if off.ID == "" {
		off.ID = id
	}
	return &off, nil
}

// AcceptOffer accepts an offer by id.
func (c *Client) AcceptOffer(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPost, "/trade/v1/offers/"+url.PathEscape(id)+"/accept", nil)
	return err
}

// DeclineOffer declines an offer by id.
func (c *Client) DeclineOffer(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPost, "/trade/v1/offers/"+url.PathEscape(id)+"/decline", nil)
	return err
}

type sendRequest struct {
	Partner        string   `json:"partner"`
	Message        string   `json:"message,omitempty"`
	ItemsToGive    []uint64 `json:"items_to_give"`
	ItemsToReceive []uint64 `json:"items_to_receive"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// SendOffer creates a new outgoing offer and returns its id.
func (c *Client) SendOffer(ctx context.Context, partner, message string, give, receive []uint64) (string, error) {
	req := sendRequest{
		Partner:        partner,
		Message:        message,
		ItemsToGive:    give,
		ItemsToReceive: receive,
	}
	b, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	body, err := c.do(ctx, http.MethodPost, "/trade/v1/offers", b)
	if err != nil {
		return "", err
	}

	var resp sendResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("send offer decode: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("send offer: empty id in response")
	}
	return resp.ID, nil
}

// RefreshSession re-authenticates the web session backing this client.
func (c *Client) RefreshSession(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/trade/v1/session/refresh", nil)
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
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Token "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trade api %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("trade api read: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return body, nil
	case http.StatusNotFound, http.StatusGone:
		return nil, ErrOfferGone
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrNotLoggedIn
	default:
		return nil, fmt.Errorf("trade api %s %s: status %d: %s", method, path, resp.StatusCode, trimBody(body))
	}
}

func trimBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "…"
	}
	return s
}
