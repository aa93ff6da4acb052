// Package sync implements the offline-first synchronization engine: the
// push/pull protocol against the remote store, the sync cycle orchestrator,
// and the remote API client.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/Growth-Sheriff/dernekv1-sub001/internal/errors"
	"github.com/Growth-Sheriff/dernekv1-sub001/internal/models"
)

const (
	// DefaultRequestTimeout bounds push/pull calls so a hung network call
	// cannot wedge the orchestrator.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultProbeTimeout bounds the lightweight reachability probe.
	DefaultProbeTimeout = 5 * time.Second
)

// ClientConfig configures the remote API client.
type ClientConfig struct {
	BaseURL        string
	TenantID       string
	Token          func() string // bearer token supplier, owned by the auth layer
	RequestTimeout time.Duration
	ProbeTimeout   time.Duration
}

// APIClient talks the fixed remote sync contract: JSON over HTTPS.
type APIClient struct {
	baseURL      string
	tenantID     string
	token        func() string
	httpClient   *http.Client
	probeTimeout time.Duration
}

// NewAPIClient creates an APIClient.
func NewAPIClient(cfg ClientConfig) *APIClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	return &APIClient{
		baseURL:      cfg.BaseURL,
		tenantID:     cfg.TenantID,
		token:        cfg.Token,
		probeTimeout: probeTimeout,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}

// TenantID returns the tenant this client synchronizes.
func (c *APIClient) TenantID() string {
	return c.tenantID
}

func (c *APIClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "failed to build request", err)
	}
	if c.token != nil {
		if t := c.token(); t != "" {
			req.Header.Set("Authorization", "Bearer "+t)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do executes a request and maps transport and status failures onto the
// engine's error taxonomy: unreachable/timeout and 5xx are NETWORK_ERROR
// (retried next cycle), 4xx is SERVER_REJECTED (surfaced, change stays
// pending).
func (c *APIClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrNetwork, "remote unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return apperrors.New(apperrors.ErrNetwork,
			fmt.Sprintf("remote returned %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apperrors.New(apperrors.ErrServerRejected,
			fmt.Sprintf("remote rejected request (%d): %s", resp.StatusCode, bytes.TrimSpace(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(apperrors.ErrNetwork, "malformed remote response", err)
	}
	return nil
}

// Push sends one batch of pending changes: POST /sync/push.
func (c *APIClient) Push(ctx context.Context, req *models.PushRequest) (*models.PushResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "failed to encode push request", err)
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/sync/push", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var resp models.PushResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pull fetches the remote delta since the watermark:
// GET /sync/pull/{tenant}?since=<timestamp>.
func (c *APIClient) Pull(ctx context.Context, since int64) (*models.PullResponse, error) {
	path := fmt.Sprintf("/sync/pull/%s?since=%s",
		url.PathEscape(c.tenantID), url.QueryEscape(fmt.Sprintf("%d", since)))
	httpReq, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var resp models.PullResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResolveConflicts reports resolution choices: POST /sync/conflicts/resolve.
func (c *APIClient) ResolveConflicts(ctx context.Context, resolutions []models.ConflictResolution) error {
	body, err := json.Marshal(resolutions)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "failed to encode resolutions", err)
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/sync/conflicts/resolve", bytes.NewReader(body))
	if err != nil {
		return err
	}
	return c.do(httpReq, nil)
}

// Probe issues the lightweight reachability check with its own bounded
// timeout, independent of the longer push/pull timeout.
func (c *APIClient) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodHead, "/sync/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrNetwork, "probe failed", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return apperrors.New(apperrors.ErrNetwork,
			fmt.Sprintf("probe returned %d", resp.StatusCode))
	}
	return nil
}
