// Package retry provides the default retry policy: transport failures are
// retried with exponential backoff and jitter up to a bounded attempt
// count. A fresh Policy must be created for every invocation.
package retry

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/cenkalti/backoff/v4"

	"github.com/go-warp/warp/errors"
)

// Options defines the retry policy knobs.
type Options struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration
	// MaxInterval caps the backoff delay.
	MaxInterval time.Duration
	// Multiplier grows the delay between retries.
	Multiplier float64
	// RetryIf decides which failures are retryable.
	RetryIf func(err error) bool
	// OnRetry is called before each retry sleep.
	OnRetry func(ctx context.Context, attempt int, err error)
}

// Option configures a Policy.
type Option func(*Options)

// WithMaxRetries sets the number of retries after the first attempt.
func WithMaxRetries(max int) Option {
	return func(o *Options) { o.MaxRetries = max }
}

// WithInitialInterval sets the first backoff delay.
func WithInitialInterval(interval time.Duration) Option {
	return func(o *Options) { o.InitialInterval = interval }
}

// WithMaxInterval caps the backoff delay.
func WithMaxInterval(interval time.Duration) Option {
	return func(o *Options) { o.MaxInterval = interval }
}

// WithMultiplier sets the backoff growth factor.
func WithMultiplier(m float64) Option {
	return func(o *Options) { o.Multiplier = m }
}

// WithRetryIf sets the predicate deciding which failures are retryable.
func WithRetryIf(fn func(err error) bool) Option {
	return func(o *Options) { o.RetryIf = fn }
}

// WithOnRetry sets a callback invoked before each retry sleep.
func WithOnRetry(fn func(ctx context.Context, attempt int, err error)) Option {
	return func(o *Options) { o.OnRetry = fn }
}

// Policy is a stateful per-invocation retry decision. It satisfies the
// warp.Retryer contract and must not be shared across invocations.
type Policy struct {
	opts    Options
	backoff backoff.BackOff
	attempt int
}

// New creates a Policy with bounded exponential backoff. Defaults: 3
// retries, 100ms initial interval growing 2x with jitter up to 2s,
// retrying transport failures only.
func New(opts ...Option) *Policy {
	options := Options{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
		RetryIf:         Transient,
	}
	for _, opt := range opts {
		opt(&options)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = options.InitialInterval
	b.MaxInterval = options.MaxInterval
	b.Multiplier = options.Multiplier
	// the attempt cap bounds the loop, not elapsed time
	b.MaxElapsedTime = 0
	b.Reset()
	return &Policy{opts: options, backoff: b}
}

// ShouldRetry reports whether the failed attempt should be repeated,
// sleeping for the backoff delay first. The sleep honors ctx; a cancelled
// context declines the retry.
func (p *Policy) ShouldRetry(ctx context.Context, err error) bool {
	p.attempt++
	if p.attempt > p.opts.MaxRetries {
		return false
	}
	if !p.opts.RetryIf(err) {
		return false
	}
	wait := p.backoff.NextBackOff()
	if wait == backoff.Stop {
		return false
	}
	if hint, ok := retryAfter(err); ok && hint > wait {
		wait = hint
	}
	if p.opts.OnRetry != nil {
		p.opts.OnRetry(ctx, p.attempt, err)
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(wait):
		return true
	}
}

// Attempt returns the number of retries decided so far.
func (p *Policy) Attempt() int { return p.attempt }

// Transient is the default retry predicate: transport-classified failures
// and timeouts are retryable, everything else is terminal.
func Transient(err error) bool {
	if errors.Code(err) == errors.ErrorCodeTransport {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// retryAfter extracts a Retry-After hint from the failure, either delay
// seconds or an HTTP-date.
func retryAfter(err error) (time.Duration, bool) {
	var raw string
	var transportErr *errors.TransportError
	var statusErr *errors.StatusError
	switch {
	case errors.As(err, &transportErr):
		raw = transportErr.RetryAfter
	case errors.As(err, &statusErr):
		raw = statusErr.RetryAfter
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if seconds, convErr := strconv.Atoi(raw); convErr == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	when, parseErr := dateparse.ParseAny(raw)
	if parseErr != nil {
		return 0, false
	}
	delay := time.Until(when)
	if delay <= 0 {
		return 0, false
	}
	return delay, true
}
