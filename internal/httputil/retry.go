// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the feed clients.
package httputil

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// RetryBaseDelay is the first backoff step when the server sends no
// Retry-After header. Tests override this to avoid real sleeps.
var RetryBaseDelay = 3 * time.Second

// MaxRetryDelay caps a single wait, including server-provided Retry-After values.
var MaxRetryDelay = 2 * time.Minute

const defaultMaxRetries = 3

// Retrier re-sends requests that the server rejected as overloaded
// (HTTP 429 or 503). The zero value retries defaultMaxRetries times and
// logs nothing.
type Retrier struct {
	// MaxRetries is the number of retries after the first attempt.
	// Zero or negative selects the default (3).
	MaxRetries int

	// Logger receives one debug line per retry. Nil disables logging.
	Logger *zap.Logger
}

// Do sends req and retries on 429/503. The wait honors a Retry-After header
// given in seconds and otherwise doubles from RetryBaseDelay on each attempt.
//
// Each rejected response body is drained and closed before waiting. If ctx
// ends during a wait Do returns ctx.Err(). When retries are exhausted the
// last rejected response is returned unchanged so the caller can report it.
func (r Retrier) Do(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	maxRetries := r.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			return nil, err
		}
		if !retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		wait := backoff(attempt, resp.Header.Get("Retry-After"))
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		log.Debug("request throttled, retrying",
			zap.String("url", req.URL.Redacted()),
			zap.Int("status", resp.StatusCode),
			zap.Duration("wait", wait),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

func backoff(attempt int, retryAfter string) time.Duration {
	wait := RetryBaseDelay << attempt
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		wait = time.Duration(secs) * time.Second
	}
	if wait > MaxRetryDelay || wait < 0 {
		wait = MaxRetryDelay
	}
	return wait
}
