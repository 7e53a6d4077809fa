package warp

import (
	"fmt"
	"time"

	"github.com/go-warp/warp/errors"
)

// textEncoder is the default Encoder. It handles plain text bodies; typed
// bodies need a real codec (for example codec/json).
type textEncoder struct{}

func (textEncoder) Encode(value interface{}, bodyType string, template *RequestTemplate) error {
	switch v := value.(type) {
	case []byte:
		template.SetBody(v)
	case string:
		template.SetBody([]byte(v))
	case fmt.Stringer:
		template.SetBody([]byte(v.String()))
	default:
		return errors.Newf(errorCodeEncoder, "no encoder configured for body type %T", value)
	}
	if template.Headers().Get("Content-Type") == "" {
		template.Header("Content-Type", "text/plain; charset="+template.Charset())
	}
	return nil
}

// textDecoder is the default Decoder. It yields the body as a string or
// byte slice depending on the declared return prototype.
type textDecoder struct{}

func (textDecoder) Decode(resp *Response, returnType interface{}) (interface{}, error) {
	switch returnType.(type) {
	case nil, []byte:
		return resp.Body(), nil
	case string:
		return string(resp.Body()), nil
	default:
		return nil, errors.Newf(errorCodeDecoder, "no decoder configured for return type %T", returnType)
	}
}

const (
	errorCodeEncoder = errors.ErrorCodeRequestBuild
	errorCodeDecoder = errors.ErrorCodeDecode
)

// statusErrorDecoder is the default ErrorDecoder. Every non-successful
// response becomes a *errors.StatusError carrying the buffered body and any
// Retry-After hint.
type statusErrorDecoder struct{}

func (statusErrorDecoder) Decode(configKey string, resp *Response) error {
	return &errors.StatusError{
		ConfigKey:  configKey,
		Status:     resp.Status(),
		Reason:     resp.Reason(),
		Body:       resp.Body(),
		RetryAfter: resp.Header().Get("Retry-After"),
	}
}

// nopLogger is the default Logger.
type nopLogger struct{}

func (nopLogger) LogRequest(string, LogLevel, *Request) error { return nil }

func (nopLogger) LogResponse(_ string, _ LogLevel, resp *Response) (*Response, error) {
	return resp, nil
}

// nopReporter is the default Reporter.
type nopReporter struct{}

func (nopReporter) ReportRequest(string)                {}
func (nopReporter) ReportError(string, error)           {}
func (nopReporter) ReportLatency(string, time.Duration) {}
