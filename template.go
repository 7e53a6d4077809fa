package warp

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-warp/warp/errors"
)

// RequestTemplate is the mutable staging object a Request is built from.
// Each invocation works on a private clone of the method's prototype
// template; a template is never shared across invocations.
//
// The path, header values and query values may contain placeholders of the
// form {name}. A placeholder spelled {name?} is optional and resolves to the
// empty string when no value is bound; a required placeholder with no bound
// value fails resolution.
type RequestTemplate struct {
	method   string
	path     string
	headers  http.Header
	queries  url.Values
	charset  string
	body     []byte
	resolved bool
}

// NewRequestTemplate creates a template for the given verb and path.
func NewRequestTemplate(method, path string) *RequestTemplate {
	return &RequestTemplate{
		method:  method,
		path:    path,
		headers: make(http.Header),
		queries: make(url.Values),
		charset: "utf-8",
	}
}

// Clone returns a deep copy isolated from the receiver.
func (t *RequestTemplate) Clone() *RequestTemplate {
	clone := &RequestTemplate{
		method:   t.method,
		path:     t.path,
		headers:  make(http.Header, len(t.headers)),
		queries:  make(url.Values, len(t.queries)),
		charset:  t.charset,
		resolved: t.resolved,
	}
	for k, vs := range t.headers {
		clone.headers[k] = append([]string(nil), vs...)
	}
	for k, vs := range t.queries {
		clone.queries[k] = append([]string(nil), vs...)
	}
	if t.body != nil {
		clone.body = append([]byte(nil), t.body...)
	}
	return clone
}

// Method returns the request verb.
func (t *RequestTemplate) Method() string { return t.method }

// Path returns the request path, with any unresolved placeholders.
func (t *RequestTemplate) Path() string { return t.path }

// SetPath replaces the request path.
func (t *RequestTemplate) SetPath(path string) { t.path = path }

// Header appends values to the named header, preserving order.
func (t *RequestTemplate) Header(key string, values ...string) {
	for _, v := range values {
		t.headers.Add(key, v)
	}
}

// Headers returns the accumulated headers. The returned map is live;
// mutating it mutates the template.
func (t *RequestTemplate) Headers() http.Header { return t.headers }

// Query appends values to the named query parameter, preserving order.
func (t *RequestTemplate) Query(key string, values ...string) {
	for _, v := range values {
		t.queries.Add(key, v)
	}
}

// Queries returns the accumulated query parameters. The returned map is
// live; mutating it mutates the template.
func (t *RequestTemplate) Queries() url.Values { return t.queries }

// Charset returns the declared body charset.
func (t *RequestTemplate) Charset() string { return t.charset }

// SetCharset replaces the declared body charset.
func (t *RequestTemplate) SetCharset(charset string) { t.charset = charset }

// Body returns the attached body bytes, nil if none.
func (t *RequestTemplate) Body() []byte { return t.body }

// SetBody attaches the encoded request body.
func (t *RequestTemplate) SetBody(body []byte) { t.body = body }

// Resolved reports whether Resolve has run on this template.
func (t *RequestTemplate) Resolved() bool { return t.resolved }

// Resolve replaces every placeholder in the path, header values and query
// values with its bound value. A required placeholder with no binding
// fails with a TemplateResolutionError.
func (t *RequestTemplate) Resolve(vars map[string]string) error {
	path, err := expand(t.path, vars)
	if err != nil {
		return err
	}
	t.path = path
	for key, values := range t.headers {
		for i, v := range values {
			if values[i], err = expand(v, vars); err != nil {
				return err
			}
		}
		t.headers[key] = values
	}
	for key, values := range t.queries {
		for i, v := range values {
			if values[i], err = expand(v, vars); err != nil {
				return err
			}
		}
		t.queries[key] = values
	}
	t.resolved = true
	return nil
}

// request materializes the immutable Request for the given host. Query
// values are escaped here, not earlier, so placeholder syntax survives
// until resolution.
func (t *RequestTemplate) request(host string) *Request {
	target := strings.TrimSuffix(host, "/") + "/" + strings.TrimPrefix(t.path, "/")
	if encoded := t.queries.Encode(); encoded != "" {
		if strings.Contains(target, "?") {
			target += "&" + encoded
		} else {
			target += "?" + encoded
		}
	}
	header := make(http.Header, len(t.headers))
	for k, vs := range t.headers {
		header[k] = append([]string(nil), vs...)
	}
	var body []byte
	if t.body != nil {
		body = append([]byte(nil), t.body...)
	}
	return &Request{
		url:     target,
		method:  t.method,
		header:  header,
		charset: t.charset,
		body:    body,
	}
}

// expand substitutes {name} placeholders in s using vars.
func expand(s string, vars map[string]string) (string, error) {
	if !strings.Contains(s, "{") {
		return s, nil
	}
	var out strings.Builder
	rest := s
	for {
		open := strings.Index(rest, "{")
		if open < 0 {
			out.WriteString(rest)
			return out.String(), nil
		}
		closing := strings.Index(rest[open:], "}")
		if closing < 0 {
			// unterminated brace is treated as a literal
			out.WriteString(rest)
			return out.String(), nil
		}
		closing += open
		out.WriteString(rest[:open])
		name := rest[open+1 : closing]
		optional := strings.HasSuffix(name, "?")
		if optional {
			name = strings.TrimSuffix(name, "?")
		}
		value, ok := vars[name]
		if !ok && !optional {
			return "", &errors.TemplateResolutionError{Variable: name, Expression: s}
		}
		out.WriteString(value)
		rest = rest[closing+1:]
	}
}
