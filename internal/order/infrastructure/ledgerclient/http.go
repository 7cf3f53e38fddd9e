package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ordersaga/orderflow/internal/ledger"
)

// HTTP talks to a standalone ledger service. Wire errors are returned as
// plain errors (transport failure); a 409 is reconstructed into
// *ledger.InsufficientError and a 404 into ledger.ErrNotFound so the
// orchestrator sees the same error types as with the in-process adapter.
type HTTP struct {
	baseURL string
	client  *http.Client
}

func NewHTTP(baseURL string) *HTTP {
	return &HTTP{
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

type reserveResp struct {
	OK            bool   `json:"ok"`
	ReservationID string `json:"reservationId"`
	Reason        string `json:"reason"`
	SKU           string `json:"sku"`
	Requested     int    `json:"requested"`
	Available     int    `json:"available"`
}

func (c *HTTP) Reserve(ctx context.Context, lines []ledger.Line) (string, error) {
	body := map[string]any{"items": lines}
	resp, status, err := c.post(ctx, "/inventory/reserve", body)
	if err != nil {
		return "", err
	}
	var out reserveResp
	if err := json.Unmarshal(resp, &out); err != nil {
		return "", fmt.Errorf("decode reserve response: %w", err)
	}
	switch {
	case status == http.StatusConflict || (!out.OK && out.Reason == "OUT_OF_STOCK"):
		return "", &ledger.InsufficientError{SKU: out.SKU, Requested: out.Requested, Available: out.Available}
	case status != http.StatusOK || !out.OK || out.ReservationID == "":
		return "", fmt.Errorf("reserve failed: status %d reason %q", status, out.Reason)
	}
	return out.ReservationID, nil
}

func (c *HTTP) Release(ctx context.Context, reservationID string) error {
	return c.consume(ctx, "/inventory/release", reservationID)
}

func (c *HTTP) Commit(ctx context.Context, reservationID string) error {
	return c.consume(ctx, "/inventory/commit", reservationID)
}

func (c *HTTP) consume(ctx context.Context, path, reservationID string) error {
	resp, status, err := c.post(ctx, path, map[string]string{"reservationId": reservationID})
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ledger.ErrNotFound
	default:
		return fmt.Errorf("%s failed: status %d body %s", path, status, resp)
	}
}

func (c *HTTP) Stock(ctx context.Context, sku string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/inventory/stock/"+sku, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var out struct {
		Qty int `json:"qty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.Qty, nil
}

func (c *HTTP) post(ctx context.Context, path string, body any) ([]byte, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), resp.StatusCode, nil
}
