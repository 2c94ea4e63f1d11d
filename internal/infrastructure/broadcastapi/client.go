// Package broadcastapi is the HTTP client for the externally-owned
// broadcast management service. The studio calls it at fixed lifecycle
// points: create, start, transition to live, end.
package broadcastapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"studiocast/internal/core/domain"
	"studiocast/pkg/retry"
	"studiocast/pkg/tracing"
)

// Client implements ports.BroadcastAPI over HTTP with retries on
// transient failures.
type Client struct {
	baseURL string
	http    *http.Client
	retry   retry.Config
	logger  *zap.SugaredLogger
}

// NewClient creates a broadcast API client.
func NewClient(baseURL string, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		retry:   retry.DefaultConfig(),
		logger:  logger,
	}
}

// CreateBroadcast registers a new broadcast and returns its id.
func (c *Client) CreateBroadcast(ctx context.Context, title string) (domain.BroadcastID, error) {
	ctx, span := tracing.StartSpan(ctx, "broadcastapi.CreateBroadcast")
	defer span.End()

	body, _ := json.Marshal(map[string]string{"title": title})
	var resp struct {
		ID string `json:"id"`
	}
	err := c.call(ctx, http.MethodPost, "/v1/broadcasts", body, &resp)
	if err != nil {
		tracing.RecordError(span, err)
		return "", err
	}
	if resp.ID == "" {
		err := fmt.Errorf("broadcast API returned empty id")
		tracing.RecordError(span, err)
		return "", err
	}
	return domain.BroadcastID(resp.ID), nil
}

// StartBroadcast moves the broadcast into its testing phase.
func (c *Client) StartBroadcast(ctx context.Context, id domain.BroadcastID) error {
	return c.lifecycle(ctx, id, "start")
}

// TransitionToLive makes the broadcast visible to viewers.
func (c *Client) TransitionToLive(ctx context.Context, id domain.BroadcastID) error {
	return c.lifecycle(ctx, id, "live")
}

// EndBroadcast terminates the broadcast.
func (c *Client) EndBroadcast(ctx context.Context, id domain.BroadcastID) error {
	return c.lifecycle(ctx, id, "end")
}

func (c *Client) lifecycle(ctx context.Context, id domain.BroadcastID, action string) error {
	ctx, span := tracing.StartSpan(ctx, "broadcastapi."+action)
	defer span.End()

	path := fmt.Sprintf("/v1/broadcasts/%s/%s", id, action)
	if err := c.call(ctx, http.MethodPost, path, nil, nil); err != nil {
		tracing.RecordError(span, err)
		return err
	}
	return nil
}

// call performs one JSON request with retry on 5xx and network errors.
// 4xx responses are not retried.
func (c *Client) call(ctx context.Context, method, path string, body []byte, out interface{}) error {
	url := c.baseURL + path
	return retry.Do(ctx, c.retry, func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return retry.NonRetryable(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("broadcast API %s %s: status %d", method, path, resp.StatusCode)
		case resp.StatusCode >= 400:
			return retry.NonRetryable(fmt.Errorf("broadcast API %s %s: status %d", method, path, resp.StatusCode))
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return retry.NonRetryable(fmt.Errorf("decode broadcast API response: %w", err))
			}
		}
		return nil
	})
}
