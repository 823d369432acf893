// Package types defines common data structures used across FluxScan components.
package types

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Param is a single name/value pair of a query string or form body.
// Names are not required to be unique. Raw holds the segment as it was
// observed when re-encoding Name and Value would not reproduce it.
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Raw   string `json:"raw,omitempty"`
}

// encode renders p, preferring the observed segment.
func (p Param) encode() string {
	if p.Raw != "" {
		return p.Raw
	}
	return url.QueryEscape(p.Name) + "=" + url.QueryEscape(p.Value)
}

// WithValue returns p with its value replaced. The name keeps its
// observed encoding.
func (p Param) WithValue(value string) Param {
	name := url.QueryEscape(p.Name)
	if p.Raw != "" {
		name, _, _ = strings.Cut(p.Raw, "=")
	}
	out := Param{Name: p.Name, Value: value}
	if seg := name + "=" + url.QueryEscape(value); seg != out.encode() {
		out.Raw = seg
	}
	return out
}

// EncodeParams renders params in their original order as an
// application/x-www-form-urlencoded string. Observed segments are
// emitted unchanged.
func EncodeParams(params []Param) string {
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.encode())
	}
	return b.String()
}

// ParseParams decodes a urlencoded string into ordered params.
// Segments that fail to unescape keep their raw text as the value.
func ParseParams(raw string) []Param {
	if raw == "" {
		return nil
	}
	segments := strings.Split(raw, "&")
	params := make([]Param, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		name, value, _ := strings.Cut(seg, "=")
		if n, err := url.QueryUnescape(name); err == nil {
			name = n
		}
		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}
		p := Param{Name: name, Value: value}
		if p.encode() != seg {
			p.Raw = seg
		}
		params = append(params, p)
	}
	return params
}

// CloneParams returns a copy of params that can be modified freely.
func CloneParams(params []Param) []Param {
	if params == nil {
		return nil
	}
	out := make([]Param, len(params))
	copy(out, params)
	return out
}

// Headers is an ordered header list with case-insensitive lookup.
type Headers []Param

// Get returns the first value for name, compared case-insensitively.
func (h Headers) Get(name string) (string, bool) {
	for _, p := range h {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return "", false
}

// Clone returns a copy of the header list.
func (h Headers) Clone() Headers {
	return Headers(CloneParams(h))
}

// BaseRequest is an immutable snapshot of an observed request.
// URL holds scheme, host and path; the query string always comes from Query.
type BaseRequest struct {
	ID          string  `json:"id"`
	Method      string  `json:"method"`
	URL         string  `json:"url"`
	Headers     Headers `json:"headers,omitempty"`
	Query       []Param `json:"query,omitempty"`
	Body        []byte  `json:"body,omitempty"`
	ContentType string  `json:"content_type,omitempty"`
}

// NewBaseRequest splits rawURL into URL and ordered Query and records the
// Content-Type header. rawURL must be absolute.
func NewBaseRequest(method, rawURL string, headers Headers, body []byte) (*BaseRequest, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("url %q is not absolute", rawURL)
	}
	if method == "" {
		method = "GET"
	}

	query := ParseParams(u.RawQuery)
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	contentType, _ := headers.Get("Content-Type")

	return &BaseRequest{
		Method:      strings.ToUpper(method),
		URL:         u.String(),
		Headers:     headers,
		Query:       query,
		Body:        body,
		ContentType: contentType,
	}, nil
}

// FullURL returns URL with the encoded query string appended.
func (b *BaseRequest) FullURL() string {
	return joinQuery(b.URL, b.Query)
}

// ToRequest returns a deep copy of b as an outbound request.
func (b *BaseRequest) ToRequest() *Request {
	body := make([]byte, len(b.Body))
	copy(body, b.Body)
	return &Request{
		Method:  b.Method,
		URL:     b.URL,
		Query:   CloneParams(b.Query),
		Headers: b.Headers.Clone(),
		Body:    body,
	}
}

// Request is a concrete outbound HTTP request.
type Request struct {
	ID      string  `json:"id,omitempty"`
	Method  string  `json:"method"`
	URL     string  `json:"url"`
	Query   []Param `json:"query,omitempty"`
	Headers Headers `json:"headers,omitempty"`
	Body    []byte  `json:"body,omitempty"`
}

// FullURL returns URL with the encoded query string appended.
func (r *Request) FullURL() string {
	return joinQuery(r.URL, r.Query)
}

// Header returns the first value of the named header.
func (r *Request) Header(name string) string {
	v, _ := r.Headers.Get(name)
	return v
}

func joinQuery(base string, query []Param) string {
	if len(query) == 0 {
		return base
	}
	return base + "?" + EncodeParams(query)
}

// Response wraps an HTTP response with metadata
type Response struct {
	RequestID    string        // Identifier of the request that produced this response
	StatusCode   int           // HTTP status code
	Headers      Headers       // HTTP headers in wire order
	Body         []byte        // Response body
	ResponseTime time.Duration // Time taken for the request
	Request      *Request      // Originating request, if known
}

// Header returns the first value of the named header, case-insensitively.
func (r *Response) Header(name string) (string, bool) {
	return r.Headers.Get(name)
}

// ContentType returns the lower-cased Content-Type header or "".
func (r *Response) ContentType() string {
	v, _ := r.Headers.Get("Content-Type")
	return strings.ToLower(v)
}

// BodyString returns the body as a string.
func (r *Response) BodyString() string {
	return string(r.Body)
}
