// Package http provides the default warp transport client on net/http.
package http

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-warp/warp"
	"github.com/go-warp/warp/errors"
)

const (
	// DefaultResponseTimeout is the default time to wait for response headers
	DefaultResponseTimeout = 30 * time.Second
	// DefaultRequestTimeout is the default end-to-end timeout for one attempt
	DefaultRequestTimeout = 60 * time.Second
	// DefaultDialTimeout is the default dial timeout
	DefaultDialTimeout = 10 * time.Second
	// DefaultMaxBodySize is the default maximum response body size (10MB)
	DefaultMaxBodySize = 10 * 1024 * 1024
)

// Transport is the default warp.Client. It buffers the full response body
// before returning it; connection pooling lives entirely here, the pipeline
// holds no transport resources.
type Transport struct {
	responseTimeout time.Duration
	requestTimeout  time.Duration
	dialTimeout     time.Duration
	maxBodySize     int64
	roundTripper    http.RoundTripper

	client *http.Client
}

// Option is a transport option
type Option func(*Transport)

// WithResponseTimeout sets the time to wait for response headers
func WithResponseTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		t.responseTimeout = timeout
	}
}

// WithRequestTimeout sets the end-to-end timeout for one attempt
func WithRequestTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		t.requestTimeout = timeout
	}
}

// WithDialTimeout sets the dial timeout
func WithDialTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		t.dialTimeout = timeout
	}
}

// WithMaxBodySize sets the maximum response body size
func WithMaxBodySize(size int64) Option {
	return func(t *Transport) {
		t.maxBodySize = size
	}
}

// WithRoundTripper replaces the underlying round tripper, disabling the
// built-in pool tuning
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(t *Transport) {
		t.roundTripper = rt
	}
}

// New creates a new HTTP transport
func New(opts ...Option) *Transport {
	t := &Transport{
		responseTimeout: DefaultResponseTimeout,
		requestTimeout:  DefaultRequestTimeout,
		dialTimeout:     DefaultDialTimeout,
		maxBodySize:     DefaultMaxBodySize,
	}

	for _, opt := range opts {
		opt(t)
	}

	rt := t.roundTripper
	if rt == nil {
		rt = &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   t.dialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxConnsPerHost:       0,
			ResponseHeaderTimeout: t.responseTimeout,
		}
	}

	t.client = &http.Client{
		Timeout:   t.requestTimeout,
		Transport: rt,
	}

	return t
}

// Execute exchanges the request for a fully buffered response. Failures to
// complete the exchange are classified as transport failures; any received
// response is returned as-is regardless of status.
func (t *Transport) Execute(ctx context.Context, req *warp.Request) (*warp.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method(), req.URL(), bodyReader(req))
	if err != nil {
		return nil, errors.Wrap(errors.ErrorCodeInvalidArgument, err, "building http request")
	}
	for key, values := range req.Header() {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, errors.Transport(err)
	}
	defer httpResp.Body.Close()

	// Read the body with a size limit; the pipeline contract requires the
	// full body to be available.
	limited := io.LimitReader(httpResp.Body, t.maxBodySize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.Transport(err)
	}
	if int64(len(body)) > t.maxBodySize {
		return nil, errors.Newf(errors.ErrorCodeInvalidArgument,
			"response body exceeds %d bytes", t.maxBodySize)
	}

	return warp.NewResponse(httpResp.StatusCode, reason(httpResp.Status), httpResp.Header, body), nil
}

// Close releases idle connections held by the pool.
func (t *Transport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

// Name returns the name of the transport
func (t *Transport) Name() string {
	return "http"
}

func bodyReader(req *warp.Request) io.Reader {
	if len(req.Body()) == 0 {
		return nil
	}
	return bytes.NewReader(req.Body())
}

// reason strips the status code prefix from an http status line.
func reason(status string) string {
	if i := strings.IndexByte(status, ' '); i >= 0 {
		return status[i+1:]
	}
	return status
}

// Make sure Transport implements warp.Client
var _ warp.Client = (*Transport)(nil)
