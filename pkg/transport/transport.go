// Package transport provides the rate-limited HTTP client shared by every
// component that talks to a source or destination ATS API. It enforces a
// minimum inter-request delay, retries throttled (429) and failed (5xx,
// connection error) calls with backoff, and returns every other status
// verbatim for the caller to interpret.
package transport

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/recruitops/atsync/pkg/config"
	"github.com/recruitops/atsync/pkg/errors"
	"github.com/recruitops/atsync/pkg/metrics"
)

// Params carries query string parameters for a request.
type Params map[string]string

// Response is a completed, fully-read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// DecodeJSON unmarshals the response body into v.
func (r *Response) DecodeJSON(v interface{}) error {
	if len(r.Body) == 0 {
		return errors.New(errors.ErrorTypeData, "empty response body")
	}
	if err := gojson.Unmarshal(r.Body, v); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "decode response body")
	}
	return nil
}

// OK reports whether the status is a 2xx.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client issues throttled, retrying HTTP calls against one base URL.
// Construct one per target system and pass it by handle; there is no
// package-level client state.
type Client struct {
	system     string // label for logs and metrics: "source" or "destination"
	baseURL    string
	auth       Auth
	limiter    *IntervalLimiter
	retry      *RetryPolicy
	rateLimit  rateLimitPolicy
	httpClient *http.Client
	logger     *zap.Logger
}

type rateLimitPolicy struct {
	retries   int
	baseDelay time.Duration
}

// NewClient creates a transport client for one target system.
func NewClient(system, baseURL string, auth Auth, cfg config.TransportConfig, logger *zap.Logger) *Client {
	httpTransport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
	}

	if cfg.EnableHTTP2 {
		if err := http2.ConfigureTransport(httpTransport); err != nil {
			logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	retry := DefaultRetryPolicy()
	retry.MaxAttempts = cfg.RetryAttempts
	if cfg.RetryDelay > 0 {
		retry.InitialDelay = cfg.RetryDelay
	}
	if cfg.MaxRetryDelay > 0 {
		retry.MaxDelay = cfg.MaxRetryDelay
	}

	return &Client{
		system:  system,
		baseURL: strings.TrimRight(baseURL, "/"),
		auth:    auth,
		limiter: NewIntervalLimiter(cfg.RequestDelay),
		retry:   retry,
		rateLimit: rateLimitPolicy{
			retries:   cfg.RateLimitRetries,
			baseDelay: cfg.RateLimitDelay,
		},
		httpClient: &http.Client{
			Transport: httpTransport,
			Timeout:   cfg.RequestTimeout,
		},
		logger: logger.With(zap.String("component", "transport"), zap.String("system", system)),
	}
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, params Params) (*Response, error) {
	return c.Send(ctx, http.MethodGet, path, params, nil)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Send(ctx, http.MethodPost, path, nil, body)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Send(ctx, http.MethodPatch, path, nil, body)
}

// Send issues one logical request. The inter-request delay is enforced
// before every attempt; 429 and 5xx responses are retried within their
// respective budgets; any other status is returned verbatim.
func (c *Client) Send(ctx context.Context, method, path string, params Params, body interface{}) (*Response, error) {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = gojson.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "encode request body")
		}
	}

	reqURL, err := c.buildURL(path, params)
	if err != nil {
		return nil, err
	}

	serverAttempt := 0
	rateAttempt := 0

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "rate limit wait cancelled")
		}

		timer := metrics.NewTimer()
		resp, err := c.doOnce(ctx, method, reqURL, bodyBytes)
		elapsed := timer.Stop()

		if err != nil {
			metrics.ObserveRequest(c.system, method, 0, elapsed)
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "request cancelled")
			}
			if c.retry.Exhausted(serverAttempt) {
				return nil, errors.Wrap(err, errors.ErrorTypeTransport, "request failed after retries").
					WithDetail("url", reqURL).
					WithDetail("attempts", serverAttempt+1)
			}
			delay := c.retry.Delay(serverAttempt)
			c.logger.Warn("connection failure, retrying",
				zap.String("method", method),
				zap.String("url", reqURL),
				zap.Duration("backoff", delay),
				zap.Error(err))
			metrics.RetriesTotal.WithLabelValues(c.system, "connection").Inc()
			serverAttempt++
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "retry wait cancelled")
			}
			continue
		}

		metrics.ObserveRequest(c.system, method, resp.Status, elapsed)

		switch {
		case resp.Status == http.StatusTooManyRequests:
			if rateAttempt >= c.rateLimit.retries-1 {
				return nil, errors.New(errors.ErrorTypeRateLimit, "rate limit retries exhausted").
					WithDetail("url", reqURL).
					WithDetail("attempts", rateAttempt+1)
			}
			delay := c.throttleDelay(resp, rateAttempt)
			c.logger.Warn("throttled by target API, backing off",
				zap.String("method", method),
				zap.String("url", reqURL),
				zap.Duration("backoff", delay))
			metrics.RetriesTotal.WithLabelValues(c.system, "rate_limit").Inc()
			rateAttempt++
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "throttle wait cancelled")
			}
			continue

		case resp.Status >= 500:
			if c.retry.Exhausted(serverAttempt) {
				return nil, errors.Newf(errors.ErrorTypeTransport, "server error %d after retries", resp.Status).
					WithDetail("url", reqURL).
					WithDetail("body", string(resp.Body))
			}
			delay := c.retry.Delay(serverAttempt)
			c.logger.Warn("server error, retrying",
				zap.String("method", method),
				zap.String("url", reqURL),
				zap.Int("status", resp.Status),
				zap.Duration("backoff", delay))
			metrics.RetriesTotal.WithLabelValues(c.system, "server_error").Inc()
			serverAttempt++
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "retry wait cancelled")
			}
			continue

		default:
			// 2xx, 3xx and non-429 4xx belong to the caller.
			return resp, nil
		}
	}
}

// doOnce performs a single HTTP round trip and drains the body.
func (c *Client) doOnce(ctx context.Context, method, reqURL string, body []byte) (*Response, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, err
	}

	if err := c.auth.Apply(req); err != nil {
		return nil, err
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "atsync/1.0")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	buf := &bytes.Buffer{}
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   buf.Bytes(),
	}, nil
}

// buildURL joins the base URL, an already-escaped path and query params.
// Paths must be built with Path; raw template text is rejected.
func (c *Client) buildURL(path string, params Params) (string, error) {
	if strings.ContainsAny(path, "{}") {
		return "", errors.Newf(errors.ErrorTypeData, "unresolved path template: %s", path)
	}
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		u += "?" + q.Encode()
	}
	return u, nil
}

// throttleDelay picks the 429 backoff: the server's Retry-After when
// present, otherwise the configured base delay doubled per attempt.
func (c *Client) throttleDelay(resp *Response, attempt int) time.Duration {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return c.rateLimit.baseDelay << attempt
}

// Path builds a request path from segments, escaping each one. Using it for
// every ID interpolation keeps unresolved "{id}" placeholders out of URLs.
func Path(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(escaped, "/")
}

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
