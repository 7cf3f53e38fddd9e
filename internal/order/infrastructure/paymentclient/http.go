// Package paymentclient adapts the payment authority's REST boundary to
// the orchestrator's PaymentGateway port.
package paymentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ordersaga/orderflow/internal/order/application"
)

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

// Authorize posts the payment request. A decline (including unknown
// customer or product) comes back as Success=false with a reason; only
// transport problems and 5xx responses are returned as errors.
func (c *HTTP) Authorize(ctx context.Context, req application.PaymentRequest) (application.PaymentResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return application.PaymentResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(payload))
	if err != nil {
		return application.PaymentResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return application.PaymentResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return application.PaymentResult{}, fmt.Errorf("payment service error: status %d", resp.StatusCode)
	}

	var result application.PaymentResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return application.PaymentResult{}, fmt.Errorf("decode payment response: %w", err)
	}
	return result, nil
}
