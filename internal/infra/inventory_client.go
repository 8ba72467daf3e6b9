package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/inventory"
	"marketplace/internal/resilience"
)

type ProductInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Price     int64  `json:"price"`
	Active    bool   `json:"active"`
	Available int64  `json:"available"`
}

// InventoryClient talks to the inventory service. Every call crosses a
// service boundary, so all of them go through the circuit breaker; only the
// idempotent product read is additionally retried. Reserve/release/consume
// are not retried: a retried reserve that actually landed would double-book
// stock.
type InventoryClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	retry      resilience.RetryConfig
}

func NewInventoryClient(baseURL string, timeout time.Duration, breaker *resilience.CircuitBreaker, retry resilience.RetryConfig) *InventoryClient {
	return &InventoryClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		retry:      retry,
	}
}

func (c *InventoryClient) GetProduct(ctx context.Context, productID string) (*ProductInfo, error) {
	if inventory.IsMockProduct(productID) {
		// Demo products have no inventory row; hand back an always-available
		// snapshot so demo orders can flow end to end.
		return &ProductInfo{
			ID:        productID,
			Name:      "Mock Product",
			SKU:       productID,
			Price:     1000,
			Active:    true,
			Available: 1 << 30,
		}, nil
	}

	var info ProductInfo
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Retry(ctx, c.retry, func(ctx context.Context) error {
			err := c.getJSON(ctx, fmt.Sprintf("%s/products/%s", c.baseURL, productID), &info)
			if errors.Is(err, domain.ErrNotFound) {
				// A missing product will not appear on a later attempt.
				return resilience.Permanent(err)
			}
			return err
		})
	})
	if err != nil {
		return nil, c.mapErr(err)
	}
	return &info, nil
}

func (c *InventoryClient) Reserve(ctx context.Context, productID string, qty int64) error {
	return c.post(ctx, productID, "reserve", qty)
}

func (c *InventoryClient) Release(ctx context.Context, productID string, qty int64) error {
	return c.post(ctx, productID, "release", qty)
}

func (c *InventoryClient) Consume(ctx context.Context, productID string, qty int64) error {
	return c.post(ctx, productID, "consume", qty)
}

func (c *InventoryClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inventory service returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *InventoryClient) post(ctx context.Context, productID, op string, qty int64) error {
	if inventory.IsMockProduct(productID) {
		return nil
	}

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		body, _ := json.Marshal(map[string]int64{"quantity": qty})
		url := fmt.Sprintf("%s/products/%s/%s", c.baseURL, productID, op)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			return nil
		case http.StatusNotFound:
			return fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
		case http.StatusConflict:
			return fmt.Errorf("%w: product %s", domain.ErrInsufficientInventory, productID)
		default:
			return fmt.Errorf("inventory %s returned status %d", op, resp.StatusCode)
		}
	})
	return c.mapErr(err)
}

func (c *InventoryClient) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, url)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inventory service returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *InventoryClient) mapErr(err error) error {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return fmt.Errorf("%w: inventory service", domain.ErrUpstreamUnavailable)
	}
	return err
}
