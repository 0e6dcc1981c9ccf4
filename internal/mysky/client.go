// Package mysky is the read-only client for the scheduling source. The
// service treats it as an out-of-band feed: sync pulls fresh roster and trip
// snapshots, and nothing is ever written back.
package mysky

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fltops/autopilot/internal/store"
)

// ErrNotConfigured is returned when no MySky URL is set; callers surface it
// as "sync unavailable" rather than an internal failure.
var ErrNotConfigured = errors.New("mysky not configured")

type Client interface {
	FetchPilots(ctx context.Context) ([]*store.Pilot, error)
	FetchTrips(ctx context.Context) ([]*store.Trip, error)
}

type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPClient) doReq(ctx context.Context, path string) ([]byte, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("mysky GET %s: %d %s", path, resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *HTTPClient) FetchPilots(ctx context.Context) ([]*store.Pilot, error) {
	data, err := c.doReq(ctx, "/v1/crew/pilots")
	if err != nil {
		return nil, err
	}
	var pilots []*store.Pilot
	if err := json.Unmarshal(data, &pilots); err != nil {
		return nil, err
	}
	return pilots, nil
}

func (c *HTTPClient) FetchTrips(ctx context.Context) ([]*store.Trip, error) {
	data, err := c.doReq(ctx, "/v1/crew/trips")
	if err != nil {
		return nil, err
	}
	var trips []*store.Trip
	if err := json.Unmarshal(data, &trips); err != nil {
		return nil, err
	}
	return trips, nil
}
