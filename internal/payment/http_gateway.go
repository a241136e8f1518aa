package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPGateway talks to the payment terminal service over JSON/HTTP.  The
// idempotency key travels in the Idempotency-Key header so the service
// can de-duplicate retried captures.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPGateway returns a gateway for baseURL.  A nil client gets a
// 30 second timeout.
func NewHTTPGateway(baseURL, apiKey string, client *http.Client) *HTTPGateway {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPGateway{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, client: client}
}

// Charge posts req to /charges.
func (g *HTTPGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ChargeResult{}, fmt.Errorf("marshal charge: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return ChargeResult{}, fmt.Errorf("build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return ChargeResult{}, fmt.Errorf("charge request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ChargeResult{}, fmt.Errorf("read charge response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ChargeResult{}, fmt.Errorf("charge declined: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out ChargeResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return ChargeResult{}, fmt.Errorf("decode charge response: %w", err)
	}
	if out.ChargeID == "" {
		return ChargeResult{}, fmt.Errorf("charge response missing charge_id")
	}
	return out, nil
}
