package abstracts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/absredact/internal/cache"
	"github.com/ppiankov/absredact/internal/util"
	"github.com/ppiankov/absredact/internal/worker"
)

const (
	defaultMaxBytes   = 8 << 20
	defaultMaxRetries = 3
	baseBackoff       = 500 * time.Millisecond
)

// fetchSleepFunc waits between retries; tests replace it
var fetchSleepFunc = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// StatusError is a non-2xx response
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// Retryable reports whether the request may succeed if repeated
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// FetcherOptions wires the fetch stack. Nil Limiter, Robots or Cache
// disable that layer.
type FetcherOptions struct {
	Client     *http.Client
	UserAgent  string
	MaxBytes   int64
	MaxRetries int
	Limiter    *worker.Limiter
	Robots     *util.RobotsChecker
	Cache      cache.Cache
	CacheTTL   time.Duration
	Logger     zerolog.Logger
}

// Fetcher performs polite GET requests against a JSON API: robots.txt is
// honoured, requests are rate limited per host, responses are cached and
// transient failures retried
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	maxRetries int
	limiter    *worker.Limiter
	robots     *util.RobotsChecker
	cache      cache.Cache
	cacheTTL   time.Duration
	log        zerolog.Logger
}

// NewFetcher creates a fetcher from opts
func NewFetcher(opts FetcherOptions) *Fetcher {
	f := &Fetcher{
		httpClient: opts.Client,
		userAgent:  opts.UserAgent,
		maxBytes:   opts.MaxBytes,
		maxRetries: opts.MaxRetries,
		limiter:    opts.Limiter,
		robots:     opts.Robots,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		log:        opts.Logger,
	}
	if f.httpClient == nil {
		f.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if f.maxBytes <= 0 {
		f.maxBytes = defaultMaxBytes
	}
	if f.maxRetries <= 0 {
		f.maxRetries = defaultMaxRetries
	}
	return f
}

// Get fetches endpoint with params, serving from the cache when possible
func (f *Fetcher) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	key := cache.QueryKey(endpoint, params)
	if f.cache != nil {
		if body, ok := f.cache.Get(key); ok {
			f.log.Debug().Str("endpoint", endpoint).Msg("cache hit")
			return body, nil
		}
	}

	rawURL := endpoint
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}

	if f.robots != nil {
		delay, err := f.robots.Check(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if f.limiter != nil {
			f.limiter.ApplyCrawlDelay(rawURL, delay)
		}
	}

	body, err := f.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.Set(key, body, f.cacheTTL); err != nil {
			f.log.Warn().Err(err).Msg("cache write failed")
		}
	}
	return body, nil
}

// FetchWithRetry retries transient failures with exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff << (attempt - 1)
			f.log.Debug().Err(lastErr).Int("attempt", attempt+1).Dur("backoff", backoff).Msg("retrying request")
			if err := fetchSleepFunc(ctx, backoff); err != nil {
				return nil, err
			}
		}

		body, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// Fetch performs a single rate-limited GET
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
