package warp

import (
	"context"
	"fmt"

	"github.com/go-warp/warp/errors"
	"github.com/go-warp/warp/querymap"
	"github.com/go-warp/warp/retry"
)

// Options carries the collaborators shared by every client bound through a
// Warp instance. All fields except Client have working defaults; nothing is
// ever looked up from global state.
type Options struct {
	// Client executes requests. Required.
	Client Client
	// Encoder prepares request bodies. Defaults to a text encoder handling
	// strings and byte slices.
	Encoder Encoder
	// Decoder parses successful responses. Defaults to a text decoder
	// handling strings and byte slices.
	Decoder Decoder
	// ErrorDecoder classifies non-successful responses. Defaults to a
	// decoder producing *errors.StatusError.
	ErrorDecoder ErrorDecoder
	// Logger receives every attempt's request and response. Defaults to a
	// no-op logger.
	Logger Logger
	// LogLevel controls how much the Logger is shown.
	LogLevel LogLevel
	// Retryer mints the per-invocation retry policy. Defaults to
	// retry.New's bounded exponential backoff.
	Retryer RetryerFactory
	// QueryMapEncoder flattens non-map query objects. Defaults to
	// querymap.New.
	QueryMapEncoder QueryMapEncoder
	// Interceptors run against every template in registration order.
	Interceptors []RequestInterceptor
	// Expanders registers expander factories by name for metadata that
	// references expanders indirectly.
	Expanders map[string]ExpanderFactory
	// Reporter receives per-invocation measurements. Defaults to a no-op.
	Reporter Reporter
}

// Option configures a Warp instance.
type Option func(*Options)

// WithClient sets the transport client.
func WithClient(c Client) Option { return func(o *Options) { o.Client = c } }

// WithEncoder sets the request body encoder.
func WithEncoder(e Encoder) Option { return func(o *Options) { o.Encoder = e } }

// WithDecoder sets the response decoder.
func WithDecoder(d Decoder) Option { return func(o *Options) { o.Decoder = d } }

// WithErrorDecoder sets the non-success response classifier.
func WithErrorDecoder(d ErrorDecoder) Option { return func(o *Options) { o.ErrorDecoder = d } }

// WithLogger sets the request/response logger.
func WithLogger(l Logger) Option { return func(o *Options) { o.Logger = l } }

// WithLogLevel sets how much of each exchange is logged.
func WithLogLevel(level LogLevel) Option { return func(o *Options) { o.LogLevel = level } }

// WithRetryer sets the factory minting each invocation's retry policy.
func WithRetryer(f RetryerFactory) Option { return func(o *Options) { o.Retryer = f } }

// WithQueryMapEncoder sets the query object flattener.
func WithQueryMapEncoder(e QueryMapEncoder) Option { return func(o *Options) { o.QueryMapEncoder = e } }

// WithInterceptor appends request interceptors, preserving registration
// order.
func WithInterceptor(interceptors ...RequestInterceptor) Option {
	return func(o *Options) { o.Interceptors = append(o.Interceptors, interceptors...) }
}

// WithExpander registers an expander factory under a name that method
// metadata can reference.
func WithExpander(name string, factory ExpanderFactory) Option {
	return func(o *Options) {
		if o.Expanders == nil {
			o.Expanders = make(map[string]ExpanderFactory)
		}
		o.Expanders[name] = factory
	}
}

// WithReporter sets the measurement sink.
func WithReporter(r Reporter) Option { return func(o *Options) { o.Reporter = r } }

// Warp binds targets to callable clients. It is immutable after New and
// safe for concurrent use.
type Warp struct {
	opts Options
}

// New creates a Warp instance. A Client is required; every other
// collaborator falls back to its documented default.
func New(opts ...Option) (*Warp, error) {
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Client == nil {
		return nil, &errors.ConfigurationError{Message: "a transport client is required"}
	}
	if o.Encoder == nil {
		o.Encoder = textEncoder{}
	}
	if o.Decoder == nil {
		o.Decoder = textDecoder{}
	}
	if o.ErrorDecoder == nil {
		o.ErrorDecoder = statusErrorDecoder{}
	}
	if o.Logger == nil {
		o.Logger = nopLogger{}
	}
	if o.Retryer == nil {
		o.Retryer = func() Retryer { return retry.New() }
	}
	if o.QueryMapEncoder == nil {
		o.QueryMapEncoder = querymap.New()
	}
	if o.Reporter == nil {
		o.Reporter = nopReporter{}
	}
	return &Warp{opts: o}, nil
}

// PassthroughFunc handles a method that bypasses the pipeline entirely, the
// analog of a default interface method.
type PassthroughFunc func(ctx context.Context, args ...interface{}) (interface{}, error)

// MethodSpec declares one method of a target interface: either metadata
// driving a pipeline, or a passthrough implementation.
type MethodSpec struct {
	// ConfigKey identifies the method. Defaults to Metadata.ConfigKey;
	// required for passthrough entries.
	ConfigKey string
	// Metadata drives the invocation pipeline for this method.
	Metadata *MethodMetadata
	// Passthrough dispatches the method without a pipeline. Exactly one of
	// Metadata and Passthrough must be set.
	Passthrough PassthroughFunc
}

// Bind constructs one pipeline per declared method and returns the callable
// client for the target. A method with neither metadata nor a passthrough,
// a duplicate config key, or an unresolvable expander reference fails the
// bind with a configuration error.
func (w *Warp) Bind(target Target, methods []MethodSpec) (*BoundClient, error) {
	client := &BoundClient{
		target:       target,
		pipelines:    make(map[string]*pipeline, len(methods)),
		passthroughs: make(map[string]PassthroughFunc),
	}
	for _, spec := range methods {
		key := spec.ConfigKey
		if key == "" && spec.Metadata != nil {
			key = spec.Metadata.ConfigKey
		}
		if key == "" {
			return nil, &errors.ConfigurationError{Message: "method spec has no config key"}
		}
		if _, dup := client.pipelines[key]; dup {
			return nil, errors.Configurationf("method %q is declared twice", key)
		}
		if _, dup := client.passthroughs[key]; dup {
			return nil, errors.Configurationf("method %q is declared twice", key)
		}
		switch {
		case spec.Metadata != nil:
			p, err := w.buildPipeline(target, spec.Metadata)
			if err != nil {
				return nil, err
			}
			client.pipelines[key] = p
		case spec.Passthrough != nil:
			client.passthroughs[key] = spec.Passthrough
		default:
			return nil, errors.Configurationf("method %q has no metadata and no passthrough", key)
		}
	}
	return client, nil
}

func (w *Warp) buildPipeline(target Target, metadata *MethodMetadata) (*pipeline, error) {
	if err := metadata.validate(); err != nil {
		return nil, err
	}
	factory, err := newRequestFactory(target, metadata, w.opts.Interceptors,
		w.opts.Encoder, w.opts.QueryMapEncoder, w.opts.Expanders)
	if err != nil {
		return nil, err
	}
	return &pipeline{
		target:       target,
		metadata:     metadata,
		factory:      factory,
		client:       w.opts.Client,
		decoder:      w.opts.Decoder,
		errorDecoder: w.opts.ErrorDecoder,
		logger:       w.opts.Logger,
		logLevel:     w.opts.LogLevel,
		newRetryer:   w.opts.Retryer,
		reporter:     w.opts.Reporter,
	}, nil
}

// BoundClient is the callable implementation of one bound target interface.
// Its method table is immutable after bind; any number of goroutines may
// invoke it concurrently.
type BoundClient struct {
	target       Target
	pipelines    map[string]*pipeline
	passthroughs map[string]PassthroughFunc
}

// Target returns the target this client was bound to.
func (c *BoundClient) Target() Target { return c.target }

// Invoke starts the method asynchronously and returns its Call. The result
// is delivered on Call.Done. Cancelling ctx aborts the in-flight exchange
// and prevents further retry attempts.
func (c *BoundClient) Invoke(ctx context.Context, configKey string, args ...interface{}) *Call {
	return c.Go(ctx, configKey, make(chan *Call, 1), args...)
}

// Go is Invoke with a caller-supplied completion channel, which must be
// buffered.
func (c *BoundClient) Go(ctx context.Context, configKey string, done chan *Call, args ...interface{}) *Call {
	call := &Call{ConfigKey: configKey, Args: args, Done: done}
	if p, ok := c.pipelines[configKey]; ok {
		go p.invoke(ctx, call)
		return call
	}
	if fn, ok := c.passthroughs[configKey]; ok {
		go func() {
			call.Value, call.Err = fn(ctx, args...)
			call.done()
		}()
		return call
	}
	// The table is fixed at bind time, so an unmapped key is a programming
	// error, not a recoverable condition.
	panic(fmt.Sprintf("warp: no method bound for config key %q on %s", configKey, c.target))
}

// Call invokes the method and waits for its result or ctx cancellation.
func (c *BoundClient) Call(ctx context.Context, configKey string, args ...interface{}) (interface{}, error) {
	call := c.Invoke(ctx, configKey, args...)
	select {
	case <-ctx.Done():
		return nil, errors.Wrap(errors.ErrorCodeCancelled, ctx.Err(), configKey)
	case done := <-call.Done:
		return done.Value, done.Err
	}
}

// Equal reports whether both clients are bound to the same interface type
// and host.
func (c *BoundClient) Equal(o *BoundClient) bool {
	if o == nil {
		return false
	}
	return c.target.Equal(o.target)
}

// Hash returns a hash consistent with Equal.
func (c *BoundClient) Hash() uint64 { return c.target.Hash() }

// String returns the target's display form.
func (c *BoundClient) String() string { return c.target.String() }
