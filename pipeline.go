package warp

import (
	"context"
	"time"

	"github.com/go-warp/warp/errors"
)

// pipeline executes one logical method call end to end: build the request,
// log it, execute through the transport with the retryer governing retries,
// log and parse the response. One pipeline exists per bound method; all of
// its state is immutable after bind, so any number of invocations may run
// it concurrently, each with its own Call and Retryer.
type pipeline struct {
	target       Target
	metadata     *MethodMetadata
	factory      *requestFactory
	client       Client
	decoder      Decoder
	errorDecoder ErrorDecoder
	logger       Logger
	logLevel     LogLevel
	newRetryer   RetryerFactory
	reporter     Reporter
}

// invoke runs the pipeline for one call and completes it. It is executed on
// the invocation's own goroutine.
func (p *pipeline) invoke(ctx context.Context, call *Call) {
	start := time.Now()
	p.reporter.ReportRequest(p.metadata.ConfigKey)

	value, err := p.run(ctx, call.Args)
	if err != nil {
		p.reporter.ReportError(p.metadata.ConfigKey, err)
	}
	p.reporter.ReportLatency(p.metadata.ConfigKey, time.Since(start))

	call.Value = value
	call.Err = err
	call.done()
}

func (p *pipeline) run(ctx context.Context, args []interface{}) (interface{}, error) {
	// The request is built exactly once; every retry attempt replays the
	// identical request.
	req, err := p.factory.create(ctx, args)
	if err != nil {
		return nil, err
	}

	resp, err := p.execute(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err = p.logger.LogResponse(p.metadata.ConfigKey, p.logLevel, resp)
	if err != nil {
		return nil, err
	}

	return p.parse(req, resp)
}

// execute performs the attempt loop. Attempts are strictly sequential; the
// retryer decides whether a transport failure warrants another one, and a
// cancelled context stops the loop before a new attempt starts.
func (p *pipeline) execute(ctx context.Context, req *Request) (*Response, error) {
	retryer := p.newRetryer()
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrorCodeCancelled, err, p.metadata.ConfigKey)
		}
		if err := p.logger.LogRequest(p.metadata.ConfigKey, p.logLevel, req); err != nil {
			return nil, err
		}
		attempts++
		resp, err := p.client.Execute(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrap(errors.ErrorCodeCancelled, ctxErr, p.metadata.ConfigKey)
		}
		if !retryer.ShouldRetry(ctx, err) {
			return nil, &errors.RetryExhaustedError{
				ConfigKey: p.metadata.ConfigKey,
				Attempts:  attempts,
				Cause:     err,
			}
		}
	}
}

// parse maps the response to the declared result. Successful responses go
// through the decoder (or are returned raw); anything else is classified by
// the error decoder and never retried.
func (p *pipeline) parse(req *Request, resp *Response) (interface{}, error) {
	if !resp.Successful() {
		return nil, p.errorDecoder.Decode(p.metadata.ConfigKey, resp)
	}
	if p.metadata.ReturnRaw {
		return resp, nil
	}
	value, err := p.decoder.Decode(resp, p.metadata.ReturnType)
	if err != nil {
		return nil, &errors.DecodeError{
			ConfigKey:   p.metadata.ConfigKey,
			RequestBody: req.Body(),
			Cause:       err,
		}
	}
	return value, nil
}
