package warp

import (
	"context"
	"time"

	"github.com/go-warp/warp/errors"
)

// Client defines the transport used to exchange a Request for a Response.
// Implementations are shared across all pipelines and must be safe for
// concurrent use. A failure to complete the exchange (connect, send, receive)
// is a transport failure and is eligible for retry; a received response is
// returned as-is regardless of status.
type Client interface {
	// Execute submits the request and returns exactly one response or a
	// transport-level failure. The context cancels the in-flight exchange.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Encoder prepares a request body, attaching the encoded bytes to the
// template. bodyType is the declared body type from the method metadata.
type Encoder interface {
	Encode(value interface{}, bodyType string, template *RequestTemplate) error
}

// Decoder parses a successful response body into the declared return type.
// returnType is a prototype value; implementations return a freshly
// allocated value of the same type.
type Decoder interface {
	Decode(resp *Response, returnType interface{}) (interface{}, error)
}

// ErrorDecoder converts a non-successful response into a domain error. It
// must always return a non-nil error for a well-formed response; the
// response body has already been fully buffered when it is consulted.
type ErrorDecoder interface {
	Decode(configKey string, resp *Response) error
}

// Retryer decides whether a transport failure should trigger another
// attempt. Implementations are stateful per invocation (attempt counters,
// backoff schedules) and may sleep before returning; the sleep must honor
// the context.
type Retryer interface {
	ShouldRetry(ctx context.Context, err error) bool
}

// RetryerFactory mints a fresh Retryer for each invocation.
type RetryerFactory func() Retryer

// QueryMapEncoder flattens a non-map query object into query entries.
type QueryMapEncoder interface {
	Encode(value interface{}) (map[string]interface{}, error)
}

// RequestInterceptor can alter the mutable template before the request is
// materialized. Interceptors run in registration order.
type RequestInterceptor interface {
	Apply(ctx context.Context, template *RequestTemplate)
}

// RequestInterceptorFunc adapts a function to the RequestInterceptor interface.
type RequestInterceptorFunc func(ctx context.Context, template *RequestTemplate)

// Apply implements RequestInterceptor.
func (f RequestInterceptorFunc) Apply(ctx context.Context, template *RequestTemplate) {
	f(ctx, template)
}

// Expander formats an argument value into its template variable string form.
type Expander interface {
	Expand(value interface{}) string
}

// ExpanderFunc adapts a function to the Expander interface.
type ExpanderFunc func(value interface{}) string

// Expand implements Expander.
func (f ExpanderFunc) Expand(value interface{}) string { return f(value) }

// ExpanderFactory creates an Expander. Factories are registered by name on
// the builder and resolved once at bind time.
type ExpanderFactory func() Expander

// LogLevel controls how much of each exchange is logged.
type LogLevel int

const (
	// LogNone disables request/response logging.
	LogNone LogLevel = iota
	// LogBasic logs the method and URL.
	LogBasic
	// LogHeaders logs the method, URL and headers.
	LogHeaders
	// LogFull logs the method, URL, headers and body.
	LogFull
)

// Logger receives the request and response of every attempt. LogResponse may
// re-buffer the body and must return a still-consumable response; an error
// from either hook is fatal to the attempt.
type Logger interface {
	LogRequest(configKey string, level LogLevel, req *Request) error
	LogResponse(configKey string, level LogLevel, resp *Response) (*Response, error)
}

// Reporter receives per-invocation measurements keyed by config key.
type Reporter interface {
	ReportRequest(configKey string)
	ReportError(configKey string, err error)
	ReportLatency(configKey string, latency time.Duration)
}

// ArgumentBinding associates one argument position with the template
// variable names it fills. Bindings are applied in declaration order, so a
// variable bound from two positions deterministically takes the later one.
type ArgumentBinding struct {
	// Index is the argument position.
	Index int
	// Names are the template variable names filled by this position.
	Names []string
	// Expander formats the value. Optional.
	Expander Expander
	// ExpanderName references a factory registered on the builder. Resolved
	// once at bind time; an unknown name fails the bind. Optional.
	ExpanderName string
}

// MethodMetadata is the bind-time description of one interface method. It is
// immutable after bind and shared read-only across all concurrent
// invocations of the method.
type MethodMetadata struct {
	// ConfigKey uniquely identifies the method and its signature.
	ConfigKey string
	// Template is the prototype request template. It is cloned for every
	// invocation and never mutated.
	Template *RequestTemplate
	// Bindings map argument positions to template variable names.
	Bindings []ArgumentBinding
	// BodyIndex is the argument position holding the request body, -1 if none.
	BodyIndex int
	// BodyType is the declared body type passed to the Encoder.
	BodyType string
	// HeaderMapIndex is the argument position holding a bulk header map, -1
	// if none.
	HeaderMapIndex int
	// QueryMapIndex is the argument position holding a bulk query map, -1 if
	// none.
	QueryMapIndex int
	// ReturnRaw marks methods whose result is the raw *Response.
	ReturnRaw bool
	// ReturnType is a prototype of the declared result element type,
	// consulted by the Decoder. Ignored when ReturnRaw is set.
	ReturnType interface{}
}

// NewMethodMetadata returns metadata with the optional argument positions
// unset.
func NewMethodMetadata(configKey string, template *RequestTemplate) *MethodMetadata {
	return &MethodMetadata{
		ConfigKey:      configKey,
		Template:       template,
		BodyIndex:      -1,
		HeaderMapIndex: -1,
		QueryMapIndex:  -1,
	}
}

// validate reports bind-time defects in the metadata.
func (m *MethodMetadata) validate() error {
	if m.ConfigKey == "" {
		return &errors.ConfigurationError{Message: "method metadata has no config key"}
	}
	if m.Template == nil {
		return errors.Configurationf("method %q has no request template", m.ConfigKey)
	}
	for _, b := range m.Bindings {
		if b.Index < 0 {
			return errors.Configurationf("method %q binds a negative argument position", m.ConfigKey)
		}
		if len(b.Names) == 0 {
			return errors.Configurationf("method %q binds argument %d to no variable names", m.ConfigKey, b.Index)
		}
	}
	return nil
}
