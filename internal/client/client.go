// Package client is the transport to the Risk Modeler API: authenticated
// requests, retry of transient failures, and classification of everything
// else into API errors.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/rossigee/irp-integration/internal/irperr"
	"github.com/rossigee/irp-integration/internal/metrics"
	"github.com/rossigee/irp-integration/internal/retry"
	"github.com/rossigee/irp-integration/internal/validate"
)

// DefaultTimeout is the per-request timeout when none is configured.
const DefaultTimeout = 200 * time.Second

// errorSnippetLimit caps how much of an error body is echoed into errors.
const errorSnippetLimit = 500

// Config is the explicit transport configuration.
type Config struct {
	BaseURL         string
	APIKey          string
	ResourceGroupID string
	Timeout         time.Duration
	Retry           retry.Config
}

// Client issues requests against the API. It is safe for sequential reuse;
// the underlying http.Client pools connections.
type Client struct {
	cfg        Config
	httpClient *http.Client
	headers    http.Header
	log        *logrus.Entry
	metrics    *metrics.Metrics
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(c *Client) { c.log = log }
}

// WithMetrics records request and retry counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := validate.NonEmptyString(cfg.BaseURL, "base_url"); err != nil {
		return nil, err
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, irperr.Validation("invalid base_url '%s': %v", cfg.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, irperr.Validation("invalid base_url scheme '%s': must be http or https", u.Scheme)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.Exponential(6, 500*time.Millisecond)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	headers := http.Header{}
	headers.Set(HeaderAuthorization, cfg.APIKey)
	headers.Set(HeaderResourceGroupID, cfg.ResourceGroupID)

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		headers:    headers,
		log:        logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

type requestOptions struct {
	fullURL string
	baseURL string
	params  url.Values
	body    any
	hasBody bool
	headers http.Header
	timeout time.Duration
}

// RequestOption customizes a single request.
type RequestOption func(*requestOptions)

// WithFullURL sends the request to u, ignoring path and base URL.
func WithFullURL(u string) RequestOption {
	return func(o *requestOptions) { o.fullURL = u }
}

// WithBaseURL overrides the configured base URL.
func WithBaseURL(u string) RequestOption {
	return func(o *requestOptions) { o.baseURL = u }
}

// WithParams sets query parameters.
func WithParams(params url.Values) RequestOption {
	return func(o *requestOptions) { o.params = params }
}

// WithJSON sets a JSON request body.
func WithJSON(body any) RequestOption {
	return func(o *requestOptions) {
		o.body = body
		o.hasBody = true
	}
}

// WithHeaders adds headers, overriding defaults of the same name.
func WithHeaders(h http.Header) RequestOption {
	return func(o *requestOptions) { o.headers = h }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) { o.timeout = d }
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return irperr.Wrap(irperr.KindAPI, err, "invalid JSON in response from %s", r.URL)
	}
	return nil
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

type statusError struct {
	resp *Response
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%d %s for url: %s%s",
		e.resp.StatusCode, http.StatusText(e.resp.StatusCode), e.resp.URL, errorSnippet(e.resp.Body))
}

// retryableStatus lists the codes retried by the transport.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Request performs an HTTP request. Transient failures are retried within
// the configured budget; any remaining 4xx/5xx or transport error is returned
// as an API error.
func (c *Client) Request(ctx context.Context, method, path string, opts ...RequestOption) (*Response, error) {
	if err := validate.NonEmptyString(method, "method"); err != nil {
		return nil, err
	}

	o := requestOptions{timeout: c.cfg.Timeout}
	for _, opt := range opts {
		opt(&o)
	}

	target, err := c.buildURL(path, o)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if o.hasBody {
		payload, err = encodeJSON(o.body)
		if err != nil {
			return nil, irperr.Wrap(irperr.KindValidation, err, "failed to encode request body for %s %s", method, target)
		}
	}

	var last *Response
	err = retry.WithRetry(ctx, c.cfg.Retry, func() error {
		resp, doErr := c.do(ctx, method, target, payload, o)
		if doErr != nil {
			c.metrics.ObserveRequest(method, 0)
			if ctx.Err() != nil {
				return retry.Permanent(doErr)
			}
			c.metrics.ObserveRetry(method)
			c.log.WithError(doErr).WithFields(logrus.Fields{
				"method": method,
				"url":    target,
			}).Debug("Request failed, retrying")
			return doErr
		}

		last = resp
		c.metrics.ObserveRequest(method, resp.StatusCode)
		if resp.StatusCode < 400 {
			return nil
		}
		if retryableStatus[resp.StatusCode] {
			c.metrics.ObserveRetry(method)
			c.log.WithFields(logrus.Fields{
				"method": method,
				"url":    target,
				"status": resp.StatusCode,
			}).Debug("Transient API error, retrying")
			return &statusError{resp: resp}
		}
		return retry.Permanent(&statusError{resp: resp})
	})
	if err == nil {
		return last, nil
	}

	var se *statusError
	if errors.As(err, &se) {
		return nil, irperr.Wrap(irperr.KindAPI, se, "HTTP request failed")
	}
	return nil, irperr.Wrap(irperr.KindAPI, err, "Request error for %s %s", method, target)
}

// GetJSON issues a GET and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, path string, v any, opts ...RequestOption) error {
	resp, err := c.Request(ctx, http.MethodGet, path, opts...)
	if err != nil {
		return err
	}
	return resp.JSON(v)
}

func (c *Client) do(ctx context.Context, method, target string, payload []byte, o requestOptions) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, target, body)
	if err != nil {
		return nil, retry.Permanent(err)
	}

	for k, v := range c.headers {
		req.Header[k] = v
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range o.headers {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close() // Close errors are not critical
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		URL:        target,
	}, nil
}

func (c *Client) buildURL(path string, o requestOptions) (string, error) {
	var raw string
	switch {
	case o.fullURL != "":
		raw = o.fullURL
	case o.baseURL != "":
		raw = strings.TrimRight(o.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	default:
		raw = c.cfg.BaseURL + "/" + strings.TrimLeft(path, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", irperr.Validation("invalid request URL '%s': %v", raw, err)
	}
	if len(o.params) > 0 {
		q := u.Query()
		for k, vs := range o.params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// errorSnippet renders the start of an error body for inclusion in messages.
func errorSnippet(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	label := "text"
	if json.Valid(body) {
		label = "server"
	}
	text := string(body)
	if len(text) > errorSnippetLimit {
		cut := errorSnippetLimit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return fmt.Sprintf(" | %s: %s", label, text)
}
