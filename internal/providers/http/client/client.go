package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/ScraperAPI/internal/infrastructure/resilience"
)

// ErrBodyTooLarge is returned when a response exceeds Config.MaxBodySize.
var ErrBodyTooLarge = errors.New("response body too large")

// Config controls the outbound client shared by all modules.
type Config struct {
	Timeout     time.Duration
	Retries     int
	RPS         float64
	UserAgent   string
	MaxBodySize int
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Timeout:     30 * time.Second,
		Retries:     3,
		UserAgent:   "ScraperAPI/1.0",
		MaxBodySize: 10 * 1024 * 1024,
	}
}

// Request is one outbound call.
type Request struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// Response is a fully read upstream response.
type Response struct {
	URL         string            `json:"url"`
	Status      int               `json:"status"`
	Headers     map[string]string `json:"headers"`
	ContentType string            `json:"contentType"`
	Body        []byte            `json:"-"`
	Elapsed     time.Duration     `json:"-"`
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Client wraps resty over a retrying transport, with a global rate limit
// and one circuit breaker per upstream host.
type Client struct {
	resty    *resty.Client
	limiter  *rate.Limiter
	breakers *resilience.Group
	maxBody  int
}

type upstreamError struct{ status int }

func (e *upstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d", e.status)
}

// New creates a client.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = def.MaxBodySize
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = 250 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	restyClient := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		burst := int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &Client{
		resty:   restyClient,
		limiter: limiter,
		breakers: resilience.NewGroup(resilience.Settings{
			Cooldown: 30 * time.Second,
			Trip: func(c resilience.Counts) bool {
				return c.ConsecutiveFailures >= 5 ||
					(c.Requests >= 20 && float64(c.Failures)/float64(c.Requests) > 0.7)
			},
		}),
		maxBody: cfg.MaxBodySize,
	}
}

// Get fetches rawURL with optional extra headers.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Headers: headers})
}

// Do performs req. Non-2xx statuses are returned as responses, not errors;
// 5xx statuses still count against the host's breaker.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", req.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid url %q: scheme must be http or https", req.URL)
	}
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	r := c.resty.R().
		SetContext(ctx).
		SetHeaders(req.Headers).
		SetQueryParams(req.Query)
	if req.Body != "" {
		r.SetBody(req.Body)
	}

	resp, err := resilience.Do(c.breakers.Get(u.Host), func() (*resty.Response, error) {
		resp, err := r.Execute(method, u.String())
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= 500 {
			return resp, &upstreamError{status: resp.StatusCode()}
		}
		return resp, nil
	})
	var upErr *upstreamError
	if err != nil && !errors.As(err, &upErr) {
		return nil, fmt.Errorf("%s %s: %w", method, u.Redacted(), err)
	}

	body := resp.Body()
	if len(body) > c.maxBody {
		return nil, fmt.Errorf("%s %s: %w (%d bytes)", method, u.Redacted(), ErrBodyTooLarge, len(body))
	}

	headers := make(map[string]string, len(resp.Header()))
	for k, v := range resp.Header() {
		if len(v) > 0 {
			headers[strings.ToLower(k)] = v[0]
		}
	}
	contentType := resp.Header().Get("Content-Type")
	if contentType == "" && len(body) > 0 {
		contentType = mimetype.Detect(body).String()
	}

	finalURL := u.String()
	if raw := resp.RawResponse; raw != nil && raw.Request != nil {
		finalURL = raw.Request.URL.String()
	}

	return &Response{
		URL:         finalURL,
		Status:      resp.StatusCode(),
		Headers:     headers,
		ContentType: contentType,
		Body:        body,
		Elapsed:     resp.Time(),
	}, nil
}

// Breakers reports the breaker state per upstream host.
func (c *Client) Breakers() map[string]string {
	return c.breakers.States()
}
