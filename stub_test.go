package warp

import (
	"context"
	"sync/atomic"
)

// Function adapters and stateful stubs shared by the tests in this package.

type clientFunc func(ctx context.Context, req *Request) (*Response, error)

func (f clientFunc) Execute(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

type encoderFunc func(value interface{}, bodyType string, template *RequestTemplate) error

func (f encoderFunc) Encode(value interface{}, bodyType string, template *RequestTemplate) error {
	return f(value, bodyType, template)
}

type decoderFunc func(resp *Response, returnType interface{}) (interface{}, error)

func (f decoderFunc) Decode(resp *Response, returnType interface{}) (interface{}, error) {
	return f(resp, returnType)
}

type errorDecoderFunc func(configKey string, resp *Response) error

func (f errorDecoderFunc) Decode(configKey string, resp *Response) error {
	return f(configKey, resp)
}

type queryMapEncoderFunc func(value interface{}) (map[string]interface{}, error)

func (f queryMapEncoderFunc) Encode(value interface{}) (map[string]interface{}, error) {
	return f(value)
}

// stubRetryer allows a fixed number of retries without sleeping.
type stubRetryer struct {
	allowed int
	calls   int
}

func (r *stubRetryer) ShouldRetry(ctx context.Context, err error) bool {
	r.calls++
	return r.calls <= r.allowed
}

// countingClient fails or succeeds a scripted number of times.
type countingClient struct {
	attempts int32
	fn       func(attempt int32, req *Request) (*Response, error)
}

func (c *countingClient) Execute(ctx context.Context, req *Request) (*Response, error) {
	n := atomic.AddInt32(&c.attempts, 1)
	return c.fn(n, req)
}

// recordingLogger counts hook invocations and can fail LogResponse.
type recordingLogger struct {
	requests  int
	responses int
	respErr   error
}

func (l *recordingLogger) LogRequest(string, LogLevel, *Request) error {
	l.requests++
	return nil
}

func (l *recordingLogger) LogResponse(_ string, _ LogLevel, resp *Response) (*Response, error) {
	l.responses++
	if l.respErr != nil {
		return nil, l.respErr
	}
	return resp, nil
}
