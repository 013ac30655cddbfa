package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/amirphl/Kusanagi/config"
)

// ShortLinker allocates trackable short codes for links embedded in message
// bodies. Click events stay inside the short-link service; the engine reads
// them back through the click repository.
type ShortLinker interface {
	Create(ctx context.Context, longURL, trackingID string) (string, error)
	// ResolveURL turns an allocated code into the public short URL.
	ResolveURL(code string) string
}

// HTTPShortLinker allocates codes through the short-link service API
type HTTPShortLinker struct {
	cfg    config.ShortLinkConfig
	client *http.Client
}

func NewHTTPShortLinker(cfg config.ShortLinkConfig) ShortLinker {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPShortLinker{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPShortLinker) Create(ctx context.Context, longURL, trackingID string) (string, error) {
	payload := struct {
		LongURL    string `json:"long_url"`
		TrackingID string `json:"tracking_id"`
	}{
		LongURL:    longURL,
		TrackingID: trackingID,
	}
	b, _ := json.Marshal(payload)

	url := s.cfg.APIDomain + "/api/v1/short-links"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("short-link create http status: %d", resp.StatusCode)
	}

	var out struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Code == "" {
		return "", fmt.Errorf("empty short-link code")
	}
	return out.Code, nil
}

func (s *HTTPShortLinker) ResolveURL(code string) string {
	return s.cfg.PublicDomain + "/s/" + code
}

// MockShortLinker hands out deterministic codes for tests
type MockShortLinker struct {
	mu   sync.Mutex
	next int
}

func NewMockShortLinker() *MockShortLinker {
	return &MockShortLinker{}
}

func (s *MockShortLinker) Create(ctx context.Context, longURL, trackingID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("c%06d", s.next), nil
}

func (s *MockShortLinker) ResolveURL(code string) string {
	return "https://short.test/s/" + code
}
