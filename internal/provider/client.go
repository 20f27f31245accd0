// Package provider implements the outbound client for the payment provider's
// payment-lookup API.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fairyhunter13/payment-webhook-reconciler/internal/model"
)

// ErrUpstream indicates the provider API call failed; the provider's own
// webhook retry is the recovery path.
var ErrUpstream = errors.New("provider api failure")

// Fetcher fetches the authoritative payment record by provider payment id.
type Fetcher interface {
	FetchPayment(ctx context.Context, id string) (*model.ProviderPayment, error)
}

// Client talks to the provider over HTTP with a bearer token.
type Client struct {
	baseURL string
	token   string
	hc      *http.Client
}

// NewClient builds a Client for the given base URL and access token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		hc:      &http.Client{Timeout: timeout},
	}
}

// FetchPayment GETs /v1/payments/{id} and decodes the payment, keeping the
// raw body verbatim for the audit blob.
func (c *Client) FetchPayment(ctx context.Context, id string) (*model.ProviderPayment, error) {
	u := fmt.Sprintf("%s/v1/payments/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var pp providerPayload
	if err := json.Unmarshal(body, &pp); err != nil {
		return nil, fmt.Errorf("%w: decode payment: %v", ErrUpstream, err)
	}
	out := pp.toModel()
	out.Raw = body
	return out, nil
}

// providerPayload tolerates the provider sending id as a number or a string.
type providerPayload struct {
	ID                model.FlexibleID `json:"id"`
	Status            string           `json:"status"`
	StatusDetail      string           `json:"status_detail"`
	TransactionAmount json.RawMessage  `json:"transaction_amount"`
	ExternalReference string           `json:"external_reference"`
}

func (p providerPayload) toModel() *model.ProviderPayment {
	out := &model.ProviderPayment{
		ID:                string(p.ID),
		Status:            model.ProviderStatus(p.Status),
		StatusDetail:      p.StatusDetail,
		ExternalReference: p.ExternalReference,
	}
	if len(p.TransactionAmount) > 0 {
		// Amounts arrive as JSON numbers; shopspring decodes them directly.
		_ = json.Unmarshal(p.TransactionAmount, &out.TransactionAmount)
	}
	return out
}
