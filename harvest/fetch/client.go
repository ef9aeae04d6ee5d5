package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrNotFound marks a resource the site reports as absent (HTTP 404). It is never retried.
	ErrNotFound = errors.New("page not found")

	// ErrRetriesExhausted marks a URL that kept failing after every attempt.
	ErrRetriesExhausted = errors.New("max retry exceeded")
)

// StatusError is a non-2xx, non-404 response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Options tunes a Client. Zero values fall back to the defaults below.
type Options struct {
	// MaxAttempts bounds the total number of tries per URL (defaults to 3).
	MaxAttempts int

	// RetryDelay is the fixed wait between attempts (defaults to 10s).
	RetryDelay time.Duration

	// Timeout bounds a single request (defaults to 30s).
	Timeout time.Duration

	// RequestsPerSecond throttles all requests made through the client. 0 disables throttling.
	RequestsPerSecond float64

	UserAgent string
}

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 10 * time.Second
	DefaultTimeout     = 30 * time.Second
	DefaultUserAgent   = "novel-harvest/1.0"
)

// Client fetches and parses HTML pages. It is safe for concurrent use.
type Client struct {
	http    *http.Client
	opts    Options
	limiter *rate.Limiter
	log     *zap.Logger
}

func New(httpClient *http.Client, opts Options, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	} else if opts.RetryDelay == 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if log == nil {
		log = zap.NewNop()
	}

	c := &Client{http: httpClient, opts: opts, log: log}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c
}

// Fetch GETs url and parses the body. A 404 returns ErrNotFound at once; every other failure is
// retried with a constant delay until MaxAttempts is reached.
func (c *Client) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	if ctx == nil {
		return nil, errors.New("Fetch: ctx is nil")
	}

	attempt := 0
	op := func() (*goquery.Document, error) {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, backoff.Permanent(err)
			}
		}
		doc, err := c.get(ctx, url)
		if errors.Is(err, ErrNotFound) {
			return nil, backoff.Permanent(err)
		}
		return doc, err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.opts.RetryDelay), uint64(c.opts.MaxAttempts-1)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		c.log.Warn("fetch retry",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.opts.MaxAttempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	doc, err := backoff.RetryNotifyWithData(op, policy, notify)
	if err == nil {
		return doc, nil
	}
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("Fetch %s: %w", url, ctxErr)
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrRetriesExhausted, url, attempt, err)
}

func (c *Client) get(ctx context.Context, url string) (*goquery.Document, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request %s: %w", url, err))
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	c.log.Debug("fetched", zap.String("url", url), zap.Int("status", resp.StatusCode))
	return doc, nil
}
