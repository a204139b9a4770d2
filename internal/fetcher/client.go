// Stockwatch - Inventory Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stockwatch

package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/stockwatch/internal/auth"
	"github.com/tomtom215/stockwatch/internal/features"
	"github.com/tomtom215/stockwatch/internal/metrics"
)

// ExportPath is the record store's ML export route.
const ExportPath = "/api/v1/ml/export"

// Page is one export response.
type Page struct {
	Rows       []features.RawEvent `json:"rows"`
	TotalCount int                 `json:"total_count"`
	Offset     int                 `json:"offset"`
	Limit      int                 `json:"limit"`
	HasMore    bool                `json:"has_more"`
}

// Options configures a Client. Zero values take the documented defaults.
type Options struct {
	BaseURL string

	// Tokens supplies the bearer token. Nil sends no Authorization header.
	Tokens auth.TokenSource

	BatchSize int           // rows per page, default 10000
	MaxRows   int           // 0 = no cap
	Timeout   time.Duration // per request, default 60s

	RateLimit float64 // pages per second, 0 = unlimited
	Burst     int     // default 1

	MaxRetries     int           // 429 retries, default 5
	RetryBaseDelay time.Duration // default 1s, doubled per retry

	BreakerFailures uint32        // consecutive failures that open the breaker, default 5
	BreakerTimeout  time.Duration // open period before a trial request, default 30s

	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client pages the export endpoint. It is safe for concurrent use, but
// paging itself is sequential.
type Client struct {
	exportURL      string
	tokens         auth.TokenSource
	batchSize      int
	maxRows        int
	maxRetries     int
	retryBaseDelay time.Duration
	http           *http.Client
	limiter        *rate.Limiter
	cb             *gobreaker.CircuitBreaker[*Page]
	logger         zerolog.Logger
}

// New validates opts and returns a Client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("invalid export base URL %q", opts.BaseURL)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10000
	}
	if opts.MaxRows < 0 {
		return nil, fmt.Errorf("max rows must not be negative, got %d", opts.MaxRows)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = time.Second
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	c := &Client{
		exportURL:      base.String() + ExportPath,
		tokens:         opts.Tokens,
		batchSize:      opts.BatchSize,
		maxRows:        opts.MaxRows,
		maxRetries:     opts.MaxRetries,
		retryBaseDelay: opts.RetryBaseDelay,
		http:           opts.HTTPClient,
		limiter:        rate.NewLimiter(limit, opts.Burst),
		logger:         opts.Logger.With().Str("component", "fetcher").Logger(),
	}
	c.cb = gobreaker.NewCircuitBreaker[*Page](gobreaker.Settings{
		Name:        "export-api",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return !countsAsFailure(err)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			c.logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("Export circuit breaker state change")
			metrics.ExportCircuitState.Set(stateToFloat(to))
		},
	})
	metrics.ExportCircuitState.Set(0)
	return c, nil
}

// FetchPage requests one page.
func (c *Client) FetchPage(ctx context.Context, offset, limit int) (*Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("export rate limiter: %w", err)
	}

	start := time.Now()
	page, err := c.cb.Execute(func() (*Page, error) {
		return c.doPage(ctx, offset, limit)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordExportPage("open", 0, time.Since(start))
		return nil, fmt.Errorf("export page at offset %d: %w", offset, err)
	case err != nil:
		metrics.RecordExportPage("error", 0, time.Since(start))
		return nil, fmt.Errorf("export page at offset %d: %w", offset, err)
	}
	metrics.RecordExportPage("ok", len(page.Rows), time.Since(start))
	return page, nil
}

// Pages walks the export and calls fn with each page's rows. It returns
// the number of rows delivered. An error from fn stops paging.
func (c *Client) Pages(ctx context.Context, fn func(rows []features.RawEvent) error) (int, error) {
	offset, delivered := 0, 0
	for {
		limit := c.batchSize
		if c.maxRows > 0 {
			remaining := c.maxRows - delivered
			if remaining <= 0 {
				return delivered, nil
			}
			limit = min(limit, remaining)
		}

		page, err := c.FetchPage(ctx, offset, limit)
		if err != nil {
			return delivered, err
		}
		rows := page.Rows
		if len(rows) == 0 {
			return delivered, nil
		}
		if c.maxRows > 0 && delivered+len(rows) > c.maxRows {
			rows = rows[:c.maxRows-delivered]
		}

		if err := fn(rows); err != nil {
			return delivered, err
		}
		delivered += len(rows)
		offset += len(page.Rows)

		c.logger.Debug().
			Int("offset", offset).
			Int("rows", len(rows)).
			Int("total_count", page.TotalCount).
			Msg("Export page fetched")

		if !page.HasMore {
			return delivered, nil
		}
	}
}

// FetchAll returns every exported row, capped at MaxRows.
func (c *Client) FetchAll(ctx context.Context) ([]features.RawEvent, error) {
	var all []features.RawEvent
	_, err := c.Pages(ctx, func(rows []features.RawEvent) error {
		all = append(all, rows...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info().Int("rows", len(all)).Msg("Export fetched")
	return all, nil
}

func (c *Client) doPage(ctx context.Context, offset, limit int) (*Page, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	reqURL := c.exportURL + "?" + q.Encode()

	resp, err := c.doWithRetry(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: readBodyForError(resp.Body)}
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode export page: %w", err)
	}
	return &page, nil
}

// doWithRetry sends the request, retrying HTTP 429 with exponential
// backoff. The returned response is never a 429 unless retries ran out.
func (c *Client) doWithRetry(ctx context.Context, reqURL string) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.tokens != nil {
			token, err := c.tokens.Token(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to obtain export token: %w", err)
			}
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("export request failed: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt == c.maxRetries {
			return resp, nil
		}
		_ = resp.Body.Close()

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
			delay = time.Duration(secs) * time.Second
		}
		c.logger.Warn().Dur("delay", delay).Int("attempt", attempt+1).Msg("Export API rate limited, backing off")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

// State reports the circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.cb.State()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
