// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package transport implements the authenticated HTTP client for the task service.

Every outbound request goes through [Client.Do], which:

  - Attaches "Authorization: Bearer <access>" when the session has a token.
  - Tags the request with a UUIDv7 X-Request-ID for correlation.
  - Applies the optional client-side rate limit and per-request timeout.
  - Clears the session synchronously when the service answers 401.
  - Maps every failure to an [apperr.AppError]. Nothing is retried.
*/
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/taibuivan/taskdeck/internal/platform/apperr"
	"github.com/taibuivan/taskdeck/internal/platform/constants"
	"github.com/taibuivan/taskdeck/internal/platform/metrics"
	"github.com/taibuivan/taskdeck/internal/session"
	"github.com/taibuivan/taskdeck/pkg/uuidv7"
)

// maxResponseBytes bounds how much of a response body is read into memory.
const maxResponseBytes = 8 << 20

// Session is the part of the session store the transport depends on.
type Session interface {
	AccessToken() string
	ClearWithReason(context context.Context, reason string) (bool, error)
}

// API is the request surface consumed by the domain services.
type API interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Patch(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string) error
}

var _ API = (*Client)(nil)

// Config holds the construction parameters of a [Client].
type Config struct {
	// BaseURL is the service root, e.g. "http://localhost:8000/api/".
	BaseURL string

	// HTTPClient is the underlying client; nil uses a fresh http.Client.
	HTTPClient *http.Client

	// Timeout bounds each request. Zero disables the deadline.
	Timeout time.Duration

	// RateLimitRPS paces outbound requests. Zero disables pacing.
	RateLimitRPS   float64
	RateLimitBurst int

	Logger  *slog.Logger
	Metrics metrics.Recorder
}

// Client is the authenticated transport.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	session    Session
	timeout    time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    metrics.Recorder
}

// New creates a Client bound to the given session.
func New(config Config, store Session) (*Client, error) {
	base, err := url.Parse(config.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("transport: invalid base URL %q", config.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	recorder := config.Metrics
	if recorder == nil {
		recorder = metrics.Nop{}
	}

	client := &Client{
		baseURL:    base,
		httpClient: httpClient,
		session:    store,
		timeout:    config.Timeout,
		logger:     logger.With(slog.String("component", "transport")),
		metrics:    recorder,
	}

	if config.RateLimitRPS > 0 {
		burst := config.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(config.RateLimitRPS), burst)
	}

	return client, nil
}

// # Verbs

// Get issues a GET and decodes the response into out.
func (client *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return client.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST with a JSON body.
func (client *Client) Post(ctx context.Context, path string, body, out any) error {
	return client.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Patch issues a PATCH with a JSON body.
func (client *Client) Patch(ctx context.Context, path string, body, out any) error {
	return client.Do(ctx, http.MethodPatch, path, nil, body, out)
}

// Put issues a PUT with a JSON body.
func (client *Client) Put(ctx context.Context, path string, body, out any) error {
	return client.Do(ctx, http.MethodPut, path, nil, body, out)
}

// Delete issues a DELETE.
func (client *Client) Delete(ctx context.Context, path string) error {
	return client.Do(ctx, http.MethodDelete, path, nil, nil, nil)
}

/*
Do sends one request and decodes a 2xx JSON response into out.

Parameters:
  - ctx: context.Context (cancellation abandons the request)
  - method: string
  - path: string (relative to the base URL, e.g. "tasks/3/")
  - query: url.Values (may be nil)
  - body: any (JSON-encoded when non-nil)
  - out: any (decoded when non-nil and the body is non-empty)

Returns:
  - error: *apperr.AppError for every failure class
*/
func (client *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if client.limiter != nil {
		if err := client.limiter.Wait(ctx); err != nil {
			return apperr.Network(fmt.Errorf("transport_rate_wait_failed: %w", err))
		}
	}

	requestCtx := ctx
	if client.timeout > 0 {
		var cancel context.CancelFunc
		requestCtx, cancel = context.WithTimeout(ctx, client.timeout)
		defer cancel()
	}

	request, requestID, err := client.newRequest(requestCtx, method, path, query, body)
	if err != nil {
		return apperr.Internal(err)
	}

	start := time.Now()
	response, err := client.httpClient.Do(request)
	if err != nil {
		client.metrics.RecordNetworkError(method)
		client.logger.Debug("request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("request_id", requestID),
			slog.Any("error", err),
		)
		return apperr.Network(fmt.Errorf("transport_request_failed: %w", err))
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	duration := time.Since(start)
	if err != nil {
		client.metrics.RecordNetworkError(method)
		return apperr.Network(fmt.Errorf("transport_read_failed: %w", err))
	}

	client.metrics.RecordRequest(method, response.StatusCode, duration)
	client.logger.Debug("request completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", response.StatusCode),
		slog.Duration("duration", duration),
		slog.String("request_id", requestID),
	)

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		if out == nil || len(bytes.TrimSpace(payload)) == 0 {
			return nil
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return apperr.Internal(fmt.Errorf("transport_decode_failed: %w", err))
		}
		return nil
	}

	appError := apperr.FromResponse(response.StatusCode, payload)

	switch response.StatusCode {
	case http.StatusUnauthorized:
		client.teardown(ctx, requestID)
	case http.StatusForbidden:
		client.logger.Warn("request forbidden by service",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("request_id", requestID),
			slog.String("detail", appError.Message),
		)
	}

	return appError
}

// teardown clears the session after a 401. It runs on a context detached from
// the caller so an abandoned request still completes the clear.
func (client *Client) teardown(ctx context.Context, requestID string) {
	changed, err := client.session.ClearWithReason(context.WithoutCancel(ctx), session.ReasonUnauthorized)
	if err != nil {
		client.logger.Error("session teardown incomplete", slog.String("request_id", requestID), slog.Any("error", err))
	}
	if changed {
		client.logger.Info("session cleared after 401", slog.String("request_id", requestID))
	}
}

// newRequest builds the outbound request and its correlation id.
func (client *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, string, error) {
	reference, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, "", fmt.Errorf("transport_bad_path: %w", err)
	}
	target := client.baseURL.ResolveReference(reference)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("transport_encode_failed: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, "", fmt.Errorf("transport_build_failed: %w", err)
	}

	requestID := uuidv7.New()
	request.Header.Set(constants.HeaderRequestID, requestID)
	request.Header.Set(constants.HeaderUserAgent, constants.UserAgent)
	request.Header.Set(constants.HeaderAccept, constants.ContentTypeJSON)
	if body != nil {
		request.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	}
	if token := client.session.AccessToken(); token != "" {
		request.Header.Set(constants.HeaderAuthorization, "Bearer "+token)
	}

	return request, requestID, nil
}

// IsTimeout reports whether err was caused by a deadline.
func IsTimeout(err error) bool {
	return apperr.IsCode(err, apperr.CodeNetwork) && errors.Is(err, context.DeadlineExceeded)
}
