// Package serverapi is the agent's HTTP client for the sync endpoints.
// Transient failures (network errors, 5xx) are retried with exponential
// backoff; domain failures inside a 200 envelope are returned to the caller
// untouched.
package serverapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/newwaysadmin/slipsync/internal/api"
	"github.com/newwaysadmin/slipsync/internal/common"
	"github.com/newwaysadmin/slipsync/internal/logging"
)

const (
	requestTimeout = 60 * time.Second
	retryBase      = 500 * time.Millisecond
	maxRetries     = 3
)

type Client struct {
	baseURL   string
	deviceID  string
	http      *http.Client
	retryBase time.Duration
	logger    logging.Logger
}

func New(baseURL, deviceID string, logger logging.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		deviceID:  deviceID,
		http:      &http.Client{Timeout: requestTimeout},
		retryBase: retryBase,
		logger:    logger.With("component", "serverapi"),
	}
}

// post sends one JSON request and decodes the response envelope into out.
// Attempts are retried while the server looks transiently unavailable.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(c.retryBase))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(common.DeviceIDHeaderName, c.deviceID)

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Warn(ctx, "request failed, will retry", "path", path, "error", err.Error())
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			err := fmt.Errorf("%s: %w (status %d)", path, common.ErrStorageUnavailable, resp.StatusCode)
			c.logger.Warn(ctx, "server unavailable, will retry", "path", path, "status", resp.StatusCode)
			return retry.RetryableError(err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ping", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) Negotiate(ctx context.Context, req api.NegotiateRequest) (*api.NegotiateResponse, error) {
	var resp api.NegotiateResponse
	if err := c.post(ctx, "/api/sync/negotiate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Pull(ctx context.Context, req api.PullRequest) (*api.PullResponse, error) {
	var resp api.PullResponse
	if err := c.post(ctx, "/api/sync/pull", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) BatchPull(ctx context.Context, req api.BatchPullRequest) (*api.BatchPullResponse, error) {
	var resp api.BatchPullResponse
	if err := c.post(ctx, "/api/sync/pull-batch", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Push(ctx context.Context, req api.PushRequest) (*api.PushResponse, error) {
	var resp api.PushResponse
	if err := c.post(ctx, "/api/sync/push", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) BatchPush(ctx context.Context, req api.BatchPushRequest) (*api.BatchPushResponse, error) {
	var resp api.BatchPushResponse
	if err := c.post(ctx, "/api/sync/push-batch", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CloseProject(ctx context.Context, req api.CloseRequest) (*api.CloseResponse, error) {
	var resp api.CloseResponse
	if err := c.post(ctx, "/api/sync/close", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) PullAsset(ctx context.Context, req api.PullAssetRequest) (*api.PullAssetResponse, error) {
	var resp api.PullAssetResponse
	if err := c.post(ctx, "/api/sync/pull-asset", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
