// Package services provides external service integrations and technical concerns like delivery and short links
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/amirphl/Kusanagi/config"
)

// DeliveryResult is the provider's acknowledgment of a send attempt. It says
// nothing about final delivery; that arrives later through the callback.
type DeliveryResult struct {
	ProviderMessageID string
}

// DeliveryProvider is the outbound message transport contract. Retry and
// backoff are the provider's concern, not the engine's.
type DeliveryProvider interface {
	Send(ctx context.Context, destination, body, trackingID string) (*DeliveryResult, error)
}

// HTTPDeliveryProvider sends messages through the configured provider API
type HTTPDeliveryProvider struct {
	cfg    config.DeliveryProviderConfig
	client *http.Client
}

func NewHTTPDeliveryProvider(cfg config.DeliveryProviderConfig) DeliveryProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPDeliveryProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *HTTPDeliveryProvider) Send(ctx context.Context, destination, body, trackingID string) (*DeliveryResult, error) {
	if p.cfg.APIKey == "" {
		return nil, fmt.Errorf("delivery provider credentials not configured")
	}

	payload := struct {
		Sender      string `json:"sender"`
		Destination string `json:"destination"`
		Body        string `json:"body"`
		CustomerID  string `json:"customerId"`
	}{
		Sender:      p.cfg.SourceNumber,
		Destination: destination,
		Body:        body,
		CustomerID:  trackingID,
	}
	b, _ := json.Marshal(payload)

	url := p.cfg.Domain + "/api/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("delivery provider http status: %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var out struct {
		MessageID string  `json:"messageId"`
		ErrorCode *string `json:"errorCode"`
		Desc      *string `json:"description"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode provider response: %w", err)
	}
	if out.ErrorCode != nil {
		desc := ""
		if out.Desc != nil {
			desc = *out.Desc
		}
		return nil, fmt.Errorf("delivery provider error %s: %s", *out.ErrorCode, desc)
	}

	return &DeliveryResult{ProviderMessageID: out.MessageID}, nil
}

// SentMessage records one mock send for test assertions
type SentMessage struct {
	Destination string
	Body        string
	TrackingID  string
}

// MockDeliveryProvider records sends in memory; used in tests and when the
// provider domain is configured as "mock"
type MockDeliveryProvider struct {
	mu       sync.Mutex
	messages []SentMessage
	// FailWith, when set, makes every Send return this error
	FailWith error
}

func NewMockDeliveryProvider() *MockDeliveryProvider {
	return &MockDeliveryProvider{}
}

func (p *MockDeliveryProvider) Send(ctx context.Context, destination, body, trackingID string) (*DeliveryResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailWith != nil {
		return nil, p.FailWith
	}
	p.messages = append(p.messages, SentMessage{Destination: destination, Body: body, TrackingID: trackingID})
	log.Printf("mock delivery: sent to %s tracking=%s", destination, trackingID)
	return &DeliveryResult{ProviderMessageID: fmt.Sprintf("mock-%d", len(p.messages))}, nil
}

// SentMessages returns a copy of the recorded sends
func (p *MockDeliveryProvider) SentMessages() []SentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SentMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

// ClearSentMessages drops the recorded sends
func (p *MockDeliveryProvider) ClearSentMessages() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = nil
}
