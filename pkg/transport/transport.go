package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"golang.org/x/time/rate"
)

// ErrTransport is matched by every error returned once retries are exhausted.
var ErrTransport = errors.New("transport failure")

// Error describes a request that could not be completed.
type Error struct {
	Method     string
	URL        string
	Attempts   int
	StatusCode int // last retryable status, 0 for network failures
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d after %d attempts", e.Method, e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("%s %s: %v after %d attempts", e.Method, e.URL, e.Err, e.Attempts)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrTransport }

// Options configures the retry policy and the shared connection pool.
type Options struct {
	Attempts        int           // total attempts per request, default 3
	Backoff         time.Duration // base delay, doubled for every attempt, default 1s
	StatusForcelist []int         // statuses retried like network failures, default 500/502/504
	Timeout         time.Duration // per attempt, default 30s
	UserAgent       string
	MaxRPS          float64 // 0 disables the rate cap
	Logger          *slog.Logger
}

// DefaultStatusForcelist lists the server statuses retried by default.
var DefaultStatusForcelist = []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Client is the single HTTP client owned by a run.
type Client struct {
	http    *http.Client
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a Client, filling unset options with defaults.
func New(opts Options) *Client {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.StatusForcelist == nil {
		opts.StatusForcelist = DefaultStatusForcelist
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Client{
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 30 * time.Second,
			},
		},
		opts:   opts,
		logger: logger,
		sleep:  sleepContext,
	}
	if opts.MaxRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.MaxRPS), 1)
	}
	return c
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string, headers http.Header) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, headers)
}

// Do performs a request, retrying network failures and statuses from the
// forcelist with exponential backoff. Other statuses are returned as-is.
func (c *Client) Do(ctx context.Context, method, url string, headers http.Header) (*Response, error) {
	if _, err := http.NewRequestWithContext(ctx, method, url, nil); err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var (
		lastErr    error
		lastStatus int
	)
	for attempt := 0; attempt < c.opts.Attempts; attempt++ {
		if attempt > 0 {
			delay := c.opts.Backoff * time.Duration(1<<(attempt-1))
			c.logger.Debug("retrying request",
				slog.String("url", url),
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
				slog.Int("status", lastStatus),
			)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		resp, err := c.once(ctx, method, url, headers)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr, lastStatus = err, 0
			continue
		}
		if slices.Contains(c.opts.StatusForcelist, resp.StatusCode) {
			lastErr, lastStatus = fmt.Errorf("server returned %d", resp.StatusCode), resp.StatusCode
			continue
		}
		return resp, nil
	}

	c.logger.Warn("request failed",
		slog.String("url", url),
		slog.Int("attempts", c.opts.Attempts),
		slog.Any("error", lastErr),
	)
	return nil, &Error{
		Method:     method,
		URL:        url,
		Attempts:   c.opts.Attempts,
		StatusCode: lastStatus,
		Err:        lastErr,
	}
}

func (c *Client) once(ctx context.Context, method, url string, headers http.Header) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" && c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
