// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

// Package crowdaa is the HTTP client for the Crowdaa content API.
//
// Every request carries the X-Api-Key header plus a bearer token, is
// throttled by a client-side rate limiter and guarded by a circuit
// breaker that opens after repeated transport failures. API-level
// failures arrive as a JSON body with a message field and surface as
// *APIError so callers can branch on status.
package crowdaa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/common-repository/crowdaa-sync/internal/config"
	"github.com/common-repository/crowdaa-sync/internal/metrics"
)

// maxErrorBodySize caps how much of an error response is read back for
// diagnostics.
const maxErrorBodySize = 64 * 1024

// APIError is a non-2xx response from the Crowdaa API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("crowdaa api: status %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// apiResponse carries a completed HTTP exchange out of the circuit
// breaker. Only transport failures count against the breaker; API-level
// errors are judged by the caller.
type apiResponse struct {
	status int
	body   []byte
}

// Client talks to the Crowdaa API.
type Client struct {
	baseURL   string
	apiKey    string
	authToken string
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker[apiResponse]
}

// New builds a client from configuration. The circuit breaker opens
// after three consecutive transport failures and stays open for a
// minute.
func New(cfg *config.CrowdaaConfig) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker[apiResponse](gobreaker.Settings{
		Name:    "crowdaa-api",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		authToken: cfg.AuthToken,
		http:      &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(rps), int(rps)),
		breaker:   breaker,
	}
}

// HasAuthToken reports whether a bearer token is configured. Runs are
// refused without one.
func (c *Client) HasAuthToken() bool {
	return c.authToken != ""
}

// do performs one API call and decodes the JSON response into result
// when result is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s body: %w", method, path, err)
		}
	}

	start := time.Now()
	status := "error"
	defer func() {
		metrics.ObserveRemoteRequest(method, path, status, start)
	}()

	resp, err := c.breaker.Execute(func() (apiResponse, error) {
		var reqBody io.Reader = http.NoBody
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return apiResponse{}, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("X-Api-Key", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.authToken)
		req.Header.Set("Cache-Control", "no-cache")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		httpResp, err := c.http.Do(req)
		if err != nil {
			return apiResponse{}, fmt.Errorf("http request failed: %w", err)
		}
		defer httpResp.Body.Close()

		// Success bodies are read in full; only error bodies, which are
		// diagnostic text, get capped.
		var reader io.Reader = httpResp.Body
		if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
			reader = io.LimitReader(httpResp.Body, maxErrorBodySize)
		}
		data, err := io.ReadAll(reader)
		if err != nil {
			return apiResponse{}, fmt.Errorf("read response: %w", err)
		}
		return apiResponse{status: httpResp.StatusCode, body: data}, nil
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.status < 200 || resp.status >= 300 {
		return fmt.Errorf("%s %s: %w", method, path, newAPIError(resp.status, resp.body))
	}
	status = "ok"

	if result != nil && len(resp.body) > 0 {
		if err := json.Unmarshal(resp.body, result); err != nil {
			return fmt.Errorf("decode %s %s response: %w", method, path, err)
		}
	}
	return nil
}

// newAPIError extracts the message field from an error payload, falling
// back to the raw body.
func newAPIError(status int, body []byte) *APIError {
	var wrapper struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Message != "" {
		return &APIError{Status: status, Message: wrapper.Message}
	}
	msg := string(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}
