// Package gateway is the single authenticated door to the upstream admin API.
// It lists collections and performs exactly one write per call; it never
// refreshes a list itself. A 401 on any call signs the session out.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"store_admin/internal/models"
	"store_admin/internal/pkg/apierr"
	"store_admin/internal/pkg/logger"
	"store_admin/internal/pkg/metrics"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseSize = 10 << 20
	adminPrefix     = "/admin/"
	statusSuccess   = "success"
)

// Credentials supplies the bearer token and is told when the server rejects it.
type Credentials interface {
	Token() (string, error)
	SignOut(reason string)
}

// Config holds gateway configuration.
type Config struct {
	// BaseURL is the root of the upstream API; requests go to {BaseURL}/admin/{resource}.
	BaseURL     string
	Credentials Credentials
	// HTTPClient is optional; a client with Timeout is used when nil.
	HTTPClient *http.Client
	// Timeout bounds each request. Defaults to 10s.
	Timeout time.Duration
	Log     *logger.Logger
	Metrics *metrics.Collector
}

// Client implements the list and mutation calls for one session.
type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
	timeout time.Duration
	log     *logger.Logger
	metrics *metrics.Collector
}

// Result is the parsed body of a successful mutation.
type Result struct {
	HTTPStatus int
	Status     string
	Message    string
	Data       json.RawMessage
}

type responseBody struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Error   string              `json:"error"`
	Errors  map[string][]string `json:"errors"`
	Data    json.RawMessage     `json:"data"`
}

func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("gateway: BaseURL is required")
	}
	if cfg.Credentials == nil {
		return nil, errors.New("gateway: Credentials are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL: baseURL,
		creds:   cfg.Credentials,
		http:    httpClient,
		timeout: cfg.Timeout,
		log:     cfg.Log.Component("gateway"),
		metrics: cfg.Metrics,
	}, nil
}

// List fetches one page: GET {base}/admin/{resource}?page&search[&sort&direction].
func (c *Client) List(ctx context.Context, resource string, q models.ListQuery) (*models.RawPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	values := url.Values{}
	values.Set("page", strconv.Itoa(q.Page))
	values.Set("search", q.Search)
	if q.Sort != "" {
		values.Set("sort", q.Sort)
		values.Set("direction", string(q.Direction))
	}

	status, body, err := c.do(ctx, resource, http.MethodGet, collectionPath(resource)+"?"+values.Encode(), nil, "")
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", resource, err)
	}
	page, err := models.DecodePage(body)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", resource, apierr.NetworkErr(status, err))
	}
	return page, nil
}

// Mutate performs one create, update or delete and checks the uniform success
// signal: a 2xx whose body is empty or whose status is absent or "success".
func (c *Client) Mutate(ctx context.Context, m Mutation) (*Result, error) {
	method, body, contentType, err := m.encode()
	if err != nil {
		e := apierr.ClientInputErr("The form could not be encoded.", nil)
		e.Err = fmt.Errorf("%s: %w", m.describe(), err)
		return nil, e
	}

	status, raw, err := c.do(ctx, m.Resource, method, m.path(), body, contentType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.describe(), err)
	}

	result := &Result{HTTPStatus: status, Status: statusSuccess}
	if len(bytes.TrimSpace(raw)) == 0 {
		return result, nil
	}
	var parsed responseBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%s: %w", m.describe(), apierr.NetworkErr(status, err))
	}
	if parsed.Status != "" && parsed.Status != statusSuccess {
		return nil, fmt.Errorf("%s: %w", m.describe(), apierr.ValidationErr(status, messageOf(parsed, "The request was rejected."), parsed.Errors))
	}
	if parsed.Status != "" {
		result.Status = parsed.Status
	}
	result.Message = parsed.Message
	result.Data = parsed.Data
	return result, nil
}

func (c *Client) do(ctx context.Context, resource, method, path string, body []byte, contentType string) (int, []byte, error) {
	token, err := c.creds.Token()
	if err != nil {
		return 0, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, apierr.NetworkErr(0, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(resource, method, 0)
		c.log.Warn("upstream request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return 0, nil, apierr.NetworkErr(0, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveUpstream(resource, method, resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, apierr.NetworkErr(resp.StatusCode, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.log.Info("upstream rejected credentials, signing out", zap.String("method", method), zap.String("path", path))
		c.creds.SignOut("upstream 401")
		return resp.StatusCode, nil, apierr.AuthErr(resp.StatusCode)
	case resp.StatusCode >= 500:
		c.log.Warn("upstream server error", zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode))
		return resp.StatusCode, nil, apierr.NetworkErr(resp.StatusCode, fmt.Errorf("upstream status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		var parsed responseBody
		_ = json.Unmarshal(raw, &parsed)
		return resp.StatusCode, nil, apierr.ValidationErr(resp.StatusCode, messageOf(parsed, http.StatusText(resp.StatusCode)), parsed.Errors)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return resp.StatusCode, nil, apierr.NetworkErr(resp.StatusCode, fmt.Errorf("unexpected upstream status %d", resp.StatusCode))
	}

	c.log.Debug("upstream request", zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode))
	return resp.StatusCode, raw, nil
}

func messageOf(body responseBody, fallback string) string {
	switch {
	case body.Message != "":
		return body.Message
	case body.Error != "":
		return body.Error
	}
	for _, msgs := range body.Errors {
		if len(msgs) > 0 {
			return msgs[0]
		}
	}
	return fallback
}

func collectionPath(resource string) string {
	return adminPrefix + url.PathEscape(resource)
}
