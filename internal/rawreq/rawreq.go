// Package rawreq turns a raw HTTP/1.x request, as saved from a proxy, into a
// base request.
package rawreq

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fluxfuzzer/fluxscan/pkg/types"
	"github.com/valyala/fasthttp"
)

// ErrEmpty is returned for an input without a request line
var ErrEmpty = errors.New("raw request is empty")

// ReadFile parses the request stored at path
func ReadFile(path, scheme string) (*types.BaseRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request file: %w", err)
	}
	return Parse(data, scheme)
}

// Parse reads one request. Line endings may be LF or CRLF, and the
// Content-Length header is recomputed from the body actually present.
// scheme is used to build the absolute URL; it defaults to https.
func Parse(data []byte, scheme string) (*types.BaseRequest, error) {
	if scheme == "" {
		scheme = "https"
	}
	normalized, err := normalize(data)
	if err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	if err := req.Read(bufio.NewReader(bytes.NewReader(normalized))); err != nil {
		return nil, fmt.Errorf("parse raw request: %w", err)
	}

	host := string(req.Header.Host())
	if host == "" {
		return nil, errors.New("raw request has no Host header")
	}

	var headers types.Headers
	req.Header.VisitAll(func(key, value []byte) {
		if strings.EqualFold(string(key), "Content-Length") {
			return
		}
		headers = append(headers, types.Param{Name: string(key), Value: string(value)})
	})

	body := make([]byte, len(req.Body()))
	copy(body, req.Body())

	rawURL := scheme + "://" + host + string(req.Header.RequestURI())
	return types.NewBaseRequest(string(req.Header.Method()), rawURL, headers, body)
}

// normalize rewrites line endings to CRLF in the head and fixes
// Content-Length to match the body.
func normalize(data []byte) ([]byte, error) {
	text := strings.TrimLeft(string(data), "\r\n\t ")
	if text == "" {
		return nil, ErrEmpty
	}

	head, body, found := strings.Cut(text, "\r\n\r\n")
	if !found {
		head, body, _ = strings.Cut(text, "\n\n")
	}
	head = strings.ReplaceAll(head, "\r\n", "\n")

	var b strings.Builder
	for _, line := range strings.Split(head, "\n") {
		name, _, _ := strings.Cut(line, ":")
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\r\n")
	}
	if body != "" {
		b.WriteString("Content-Length: " + strconv.Itoa(len(body)) + "\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String()), nil
}
