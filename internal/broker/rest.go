package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RESTClient talks to a retail broker's HTTP API. The expected surface is
// three read-only endpoints: /balance, /positions and /operations.
type RESTClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewRESTClient creates a client for the broker API at baseURL.
func NewRESTClient(baseURL, token string, timeout time.Duration) *RESTClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *RESTClient) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("broker request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("broker request %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("broker response %s: %w", path, err)
	}
	return nil
}

// GetBalance returns the free cash balance.
func (c *RESTClient) GetBalance(ctx context.Context) (float64, error) {
	var resp struct {
		Cash float64 `json:"cash"`
	}
	if err := c.get(ctx, "/balance", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Cash, nil
}

// GetPositions returns held quantity per symbol.
func (c *RESTClient) GetPositions(ctx context.Context) (map[string]float64, error) {
	var resp struct {
		Positions []struct {
			Symbol   string  `json:"symbol"`
			Quantity float64 `json:"quantity"`
		} `json:"positions"`
	}
	if err := c.get(ctx, "/positions", nil, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(resp.Positions))
	for _, p := range resp.Positions {
		out[p.Symbol] = p.Quantity
	}
	return out, nil
}

// GetOperations returns the operation history, optionally bounded by since.
func (c *RESTClient) GetOperations(ctx context.Context, since time.Time) ([]Operation, error) {
	query := url.Values{}
	if !since.IsZero() {
		query.Set("from", since.UTC().Format(time.RFC3339))
	}
	var resp struct {
		Operations []Operation `json:"operations"`
	}
	if err := c.get(ctx, "/operations", query, &resp); err != nil {
		return nil, err
	}
	return resp.Operations, nil
}
