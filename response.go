package warp

import "net/http"

// Response is the immutable snapshot of one attempt's HTTP response. The
// body is fully buffered; there is no streaming across the transport
// boundary.
type Response struct {
	status int
	reason string
	header http.Header
	body   []byte
}

// NewResponse creates a Response snapshot. Transports and tests use this to
// hand buffered responses to the pipeline.
func NewResponse(status int, reason string, header http.Header, body []byte) *Response {
	if header == nil {
		header = make(http.Header)
	}
	return &Response{status: status, reason: reason, header: header, body: body}
}

// Status returns the HTTP status code.
func (r *Response) Status() int { return r.status }

// Reason returns the status reason phrase.
func (r *Response) Reason() string { return r.reason }

// Header returns the response headers. Callers must not mutate the returned
// map.
func (r *Response) Header() http.Header { return r.header }

// Body returns the buffered response body. Callers must not mutate the
// returned slice.
func (r *Response) Body() []byte { return r.body }

// Successful reports whether the status is in the 2xx range.
func (r *Response) Successful() bool { return r.status >= 200 && r.status < 300 }
