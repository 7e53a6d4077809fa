package warp

import "net/http"

// Request is the immutable specification of a single HTTP exchange,
// materialized from a fully resolved template. The same Request value is
// replayed on every retry attempt of an invocation.
type Request struct {
	url     string
	method  string
	header  http.Header
	charset string
	body    []byte
}

// URL returns the absolute request URL.
func (r *Request) URL() string { return r.url }

// Method returns the request verb.
func (r *Request) Method() string { return r.method }

// Header returns the request headers. Callers must not mutate the returned
// map.
func (r *Request) Header() http.Header { return r.header }

// Charset returns the body charset.
func (r *Request) Charset() string { return r.charset }

// Body returns the request body bytes, nil if none. Callers must not mutate
// the returned slice.
func (r *Request) Body() []byte { return r.body }
