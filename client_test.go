package warp

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-warp/warp/errors"
)

func okResponse(body string) *Response {
	return NewResponse(http.StatusOK, "OK", nil, []byte(body))
}

func boundClient(t *testing.T, transport Client, opts ...Option) *BoundClient {
	t.Helper()
	metadata := NewMethodMetadata("Orders#Get", NewRequestTemplate("GET", "/orders/{id}"))
	metadata.Bindings = []ArgumentBinding{{Index: 0, Names: []string{"id"}}}
	metadata.ReturnType = ""
	return boundClientWith(t, transport, metadata, opts...)
}

func boundClientWith(t *testing.T, transport Client, metadata *MethodMetadata, opts ...Option) *BoundClient {
	t.Helper()
	w, err := New(append([]Option{WithClient(transport)}, opts...)...)
	if err != nil {
		t.Fatalf("Failed to create instance: %v", err)
	}
	client, err := w.Bind(testTarget(t), []MethodSpec{{Metadata: metadata}})
	if err != nil {
		t.Fatalf("Failed to bind client: %v", err)
	}
	return client
}

func TestNewRequiresClient(t *testing.T) {
	_, err := New()
	var confErr *errors.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
}

func TestCallReturnsDecodedValue(t *testing.T) {
	transport := clientFunc(func(_ context.Context, req *Request) (*Response, error) {
		if req.URL() != "http://api.example.com/orders/42" {
			t.Errorf("URL mismatch: got %s", req.URL())
		}
		return okResponse("order-42"), nil
	})
	client := boundClient(t, transport)

	value, err := client.Call(context.Background(), "Orders#Get", 42)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if value != "order-42" {
		t.Errorf("Value mismatch: got %v, want order-42", value)
	}
}

func TestInvokeDeliversOnDone(t *testing.T) {
	transport := clientFunc(func(context.Context, *Request) (*Response, error) {
		return okResponse("async"), nil
	})
	client := boundClient(t, transport)

	call := client.Invoke(context.Background(), "Orders#Get", 1)
	select {
	case done := <-call.Done:
		if done.Err != nil {
			t.Fatalf("Invocation failed: %v", done.Err)
		}
		if done.Value != "async" {
			t.Errorf("Value mismatch: got %v, want async", done.Value)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for completion")
	}
}

func TestRetryBudgetBoundsAttempts(t *testing.T) {
	transport := &countingClient{fn: func(int32, *Request) (*Response, error) {
		return nil, errors.Transport(fmt.Errorf("connection refused"))
	}}
	retryer := &stubRetryer{allowed: 2}
	client := boundClient(t, transport, WithRetryer(func() Retryer { return retryer }))

	_, err := client.Call(context.Background(), "Orders#Get", 1)
	var exhausted *errors.RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Expected RetryExhaustedError, got %v", err)
	}
	if got := atomic.LoadInt32(&transport.attempts); got != 3 {
		t.Errorf("Attempt count mismatch: got %d, want 3", got)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("Reported attempts mismatch: got %d, want 3", exhausted.Attempts)
	}
}

func TestRetrySucceedsMidway(t *testing.T) {
	transport := &countingClient{fn: func(attempt int32, _ *Request) (*Response, error) {
		if attempt < 3 {
			return nil, errors.Transport(fmt.Errorf("connection reset"))
		}
		return okResponse("recovered"), nil
	}}
	client := boundClient(t, transport, WithRetryer(func() Retryer { return &stubRetryer{allowed: 5} }))

	value, err := client.Call(context.Background(), "Orders#Get", 1)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if value != "recovered" {
		t.Errorf("Value mismatch: got %v, want recovered", value)
	}
	if got := atomic.LoadInt32(&transport.attempts); got != 3 {
		t.Errorf("Attempt count mismatch: got %d, want 3", got)
	}
}

func TestRetryReplaysIdenticalRequest(t *testing.T) {
	var seen []*Request
	transport := &countingClient{fn: func(attempt int32, req *Request) (*Response, error) {
		seen = append(seen, req)
		if attempt == 1 {
			return nil, errors.Transport(fmt.Errorf("broken pipe"))
		}
		return okResponse("ok"), nil
	}}
	client := boundClient(t, transport, WithRetryer(func() Retryer { return &stubRetryer{allowed: 1} }))

	if _, err := client.Call(context.Background(), "Orders#Get", 1); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("Attempt count mismatch: got %d, want 2", len(seen))
	}
	if seen[0] != seen[1] {
		t.Error("Retry must replay the same request value")
	}
}

func TestNonSuccessGoesToErrorDecoderOnly(t *testing.T) {
	transport := &countingClient{fn: func(int32, *Request) (*Response, error) {
		return NewResponse(http.StatusNotFound, "Not Found", nil, []byte("missing")), nil
	}}
	decoderCalled := false
	decoder := decoderFunc(func(*Response, interface{}) (interface{}, error) {
		decoderCalled = true
		return nil, nil
	})
	client := boundClient(t, transport, WithDecoder(decoder))

	_, err := client.Call(context.Background(), "Orders#Get", 1)
	var statusErr *errors.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if statusErr.Status != http.StatusNotFound {
		t.Errorf("Status mismatch: got %d, want 404", statusErr.Status)
	}
	if decoderCalled {
		t.Error("Decoder must not run for a non-successful response")
	}
	if got := atomic.LoadInt32(&transport.attempts); got != 1 {
		t.Errorf("Non-success responses must not be retried, got %d attempts", got)
	}
}

func TestReturnRawBypassesDecoder(t *testing.T) {
	metadata := NewMethodMetadata("Orders#Raw", NewRequestTemplate("GET", "/orders"))
	metadata.ReturnRaw = true

	transport := clientFunc(func(context.Context, *Request) (*Response, error) {
		return okResponse("raw body"), nil
	})
	decoder := decoderFunc(func(*Response, interface{}) (interface{}, error) {
		t.Error("Decoder must not run for a raw-result method")
		return nil, nil
	})
	client := boundClientWith(t, transport, metadata, WithDecoder(decoder))

	value, err := client.Call(context.Background(), "Orders#Raw")
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	resp, ok := value.(*Response)
	if !ok {
		t.Fatalf("Expected *Response, got %T", value)
	}
	if string(resp.Body()) != "raw body" {
		t.Errorf("Body mismatch: got %s", resp.Body())
	}
}

func TestDecodeFailureCarriesRequestBody(t *testing.T) {
	metadata := NewMethodMetadata("Orders#Create", NewRequestTemplate("POST", "/orders"))
	metadata.BodyIndex = 0

	transport := clientFunc(func(context.Context, *Request) (*Response, error) {
		return okResponse("not-decodable"), nil
	})
	decoder := decoderFunc(func(*Response, interface{}) (interface{}, error) {
		return nil, fmt.Errorf("bad payload")
	})
	client := boundClientWith(t, transport, metadata, WithDecoder(decoder))

	_, err := client.Call(context.Background(), "Orders#Create", "the request body")
	var decodeErr *errors.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Expected DecodeError, got %v", err)
	}
	if string(decodeErr.RequestBody) != "the request body" {
		t.Errorf("Request body mismatch: got %s", decodeErr.RequestBody)
	}
}

func TestLoggerSeesEveryAttempt(t *testing.T) {
	transport := &countingClient{fn: func(attempt int32, _ *Request) (*Response, error) {
		if attempt < 3 {
			return nil, errors.Transport(fmt.Errorf("timeout"))
		}
		return okResponse("ok"), nil
	}}
	logger := &recordingLogger{}
	client := boundClient(t, transport,
		WithRetryer(func() Retryer { return &stubRetryer{allowed: 5} }),
		WithLogger(logger), WithLogLevel(LogBasic))

	if _, err := client.Call(context.Background(), "Orders#Get", 1); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if logger.requests != 3 {
		t.Errorf("LogRequest count mismatch: got %d, want 3", logger.requests)
	}
	if logger.responses != 1 {
		t.Errorf("LogResponse count mismatch: got %d, want 1", logger.responses)
	}
}

func TestLogResponseFailureIsFatal(t *testing.T) {
	transport := clientFunc(func(context.Context, *Request) (*Response, error) {
		return okResponse("ok"), nil
	})
	cause := fmt.Errorf("log sink unavailable")
	client := boundClient(t, transport, WithLogger(&recordingLogger{respErr: cause}))

	_, err := client.Call(context.Background(), "Orders#Get", 1)
	if !errors.Is(err, cause) {
		t.Fatalf("Expected the logger failure, got %v", err)
	}
}

func TestCancelledContextStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transport := &countingClient{fn: func(int32, *Request) (*Response, error) {
		cancel()
		return nil, errors.Transport(fmt.Errorf("interrupted"))
	}}
	client := boundClient(t, transport, WithRetryer(func() Retryer { return &stubRetryer{allowed: 5} }))

	_, err := client.Call(ctx, "Orders#Get", 1)
	if err == nil {
		t.Fatal("Expected an error after cancellation")
	}
	if got := atomic.LoadInt32(&transport.attempts); got != 1 {
		t.Errorf("Cancellation must stop further attempts, got %d", got)
	}
}

func TestReporterObservesInvocation(t *testing.T) {
	transport := clientFunc(func(context.Context, *Request) (*Response, error) {
		return nil, errors.Transport(fmt.Errorf("down"))
	})
	reporter := &recordingReporter{}
	client := boundClient(t, transport,
		WithRetryer(func() Retryer { return &stubRetryer{} }),
		WithReporter(reporter))

	if _, err := client.Call(context.Background(), "Orders#Get", 1); err == nil {
		t.Fatal("Expected a transport failure")
	}
	if reporter.requests != 1 || reporter.failures != 1 || reporter.latencies != 1 {
		t.Errorf("Reporter counts mismatch: requests=%d failures=%d latencies=%d",
			reporter.requests, reporter.failures, reporter.latencies)
	}
}

func TestBindRejectsDuplicateKeys(t *testing.T) {
	w, err := New(WithClient(clientFunc(func(context.Context, *Request) (*Response, error) {
		return okResponse(""), nil
	})))
	if err != nil {
		t.Fatalf("Failed to create instance: %v", err)
	}
	metadata := NewMethodMetadata("Orders#Get", NewRequestTemplate("GET", "/orders"))
	_, err = w.Bind(testTarget(t), []MethodSpec{{Metadata: metadata}, {Metadata: metadata}})
	var confErr *errors.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
}

func TestBindRejectsEmptySpec(t *testing.T) {
	w, err := New(WithClient(clientFunc(func(context.Context, *Request) (*Response, error) {
		return okResponse(""), nil
	})))
	if err != nil {
		t.Fatalf("Failed to create instance: %v", err)
	}
	_, err = w.Bind(testTarget(t), []MethodSpec{{ConfigKey: "Orders#Get"}})
	var confErr *errors.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
}

func TestPassthroughDispatch(t *testing.T) {
	w, err := New(WithClient(clientFunc(func(context.Context, *Request) (*Response, error) {
		return okResponse(""), nil
	})))
	if err != nil {
		t.Fatalf("Failed to create instance: %v", err)
	}
	client, err := w.Bind(testTarget(t), []MethodSpec{{
		ConfigKey: "Orders#Describe",
		Passthrough: func(_ context.Context, args ...interface{}) (interface{}, error) {
			return fmt.Sprintf("order %v", args[0]), nil
		},
	}})
	if err != nil {
		t.Fatalf("Failed to bind client: %v", err)
	}

	value, err := client.Call(context.Background(), "Orders#Describe", 7)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if value != "order 7" {
		t.Errorf("Value mismatch: got %v, want order 7", value)
	}
}

func TestUnknownKeyPanics(t *testing.T) {
	client := boundClient(t, clientFunc(func(context.Context, *Request) (*Response, error) {
		return okResponse(""), nil
	}))

	defer func() {
		if recover() == nil {
			t.Error("Expected a panic for an unbound config key")
		}
	}()
	client.Invoke(context.Background(), "Orders#Missing")
}

func TestBoundClientIdentity(t *testing.T) {
	transport := clientFunc(func(context.Context, *Request) (*Response, error) {
		return okResponse(""), nil
	})
	a := boundClient(t, transport)
	b := boundClient(t, transport)

	if !a.Equal(b) {
		t.Error("Clients bound to the same type and host must be equal")
	}
	if a.Hash() != b.Hash() {
		t.Error("Equal clients must hash alike")
	}
	if a.Equal(nil) {
		t.Error("A client never equals nil")
	}
	if a.String() != "Target(type=Orders, url=http://api.example.com)" {
		t.Errorf("String form mismatch: got %s", a.String())
	}
}

// recordingReporter counts measurement hooks.
type recordingReporter struct {
	requests  int
	failures  int
	latencies int
}

func (r *recordingReporter) ReportRequest(string)                { r.requests++ }
func (r *recordingReporter) ReportError(string, error)           { r.failures++ }
func (r *recordingReporter) ReportLatency(string, time.Duration) { r.latencies++ }
