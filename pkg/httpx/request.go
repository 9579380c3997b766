package httpx

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"conduithttp/pkg/conduit"
)

// Inbound is what a transport hands over for one request.
type Inbound struct {
	Proto      string // e.g. "HTTP/1.1"
	Method     string
	Target     string // request-target exactly as received
	Header     []HeaderLine
	RemoteAddr net.Addr
	Body       io.Reader
}

// Request adapts an Inbound to conduit.Request. All fields are resolved
// by NewRequest, so accessors never fail.
type Request struct {
	version       conduit.Version
	method        conduit.Method
	scheme        conduit.Scheme
	host          conduit.Host
	path          string
	query         string
	hasQuery      bool
	remote        net.Addr
	contentLength uint64
	hasLength     bool
	headers       *HeaderTable
	body          io.Reader
	ext           conduit.Extensions
}

var _ conduit.Request = (*Request)(nil)

// NewRequest validates in and builds the neutral request. Errors wrap one
// of ErrUnsupportedVersion, ErrUnsupportedMethod, ErrUnsupportedTarget,
// ErrMissingHost or ErrBadContentLength.
func NewRequest(in Inbound, scheme conduit.Scheme) (*Request, error) {
	version, err := ParseVersion(in.Proto)
	if err != nil {
		return nil, err
	}
	method, err := conduit.ParseMethod(in.Method)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, in.Method)
	}
	path, query, hasQuery, err := splitTarget(in.Target)
	if err != nil {
		return nil, err
	}

	headers := NewHeaderTable(in.Header)
	hostValue, ok := headers.First("Host")
	if !ok {
		return nil, ErrMissingHost
	}

	r := &Request{
		version:  version,
		method:   method,
		scheme:   scheme,
		host:     conduit.Host{Name: hostname(hostValue)},
		path:     path,
		query:    query,
		hasQuery: hasQuery,
		remote:   in.RemoteAddr,
		headers:  headers,
		body:     in.Body,
	}
	if r.body == nil {
		r.body = bytes.NewReader(nil)
	}
	if vals, ok := headers.Find("Content-Length"); ok {
		n, err := parseContentLength(vals)
		if err != nil {
			return nil, err
		}
		r.contentLength, r.hasLength = n, true
	}
	return r, nil
}

// ParseVersion maps a protocol tag such as "HTTP/1.1" to a version pair.
func ParseVersion(proto string) (conduit.Version, error) {
	switch proto {
	case "HTTP/0.9":
		return conduit.Version{Major: 0, Minor: 9}, nil
	case "HTTP/1.0":
		return conduit.Version{Major: 1, Minor: 0}, nil
	case "HTTP/1.1":
		return conduit.Version{Major: 1, Minor: 1}, nil
	case "HTTP/2", "HTTP/2.0":
		return conduit.Version{Major: 2, Minor: 0}, nil
	}
	return conduit.Version{}, fmt.Errorf("%w: %q", ErrUnsupportedVersion, proto)
}

// splitTarget accepts only the absolute-path form and splits it at the
// first '?'. A bare trailing '?' yields an empty, present query.
func splitTarget(target string) (path, query string, hasQuery bool, err error) {
	if !strings.HasPrefix(target, "/") {
		return "", "", false, fmt.Errorf("%w: %q", ErrUnsupportedTarget, target)
	}
	path, query, hasQuery = strings.Cut(target, "?")
	return path, query, hasQuery, nil
}

func hostname(v string) string {
	if h, _, err := net.SplitHostPort(v); err == nil {
		return h
	}
	return strings.TrimSuffix(strings.TrimPrefix(v, "["), "]")
}

// parseContentLength accepts repeated lines only when they agree.
func parseContentLength(vals []string) (uint64, error) {
	var n uint64
	for i, v := range vals {
		got, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrBadContentLength, v)
		}
		if i > 0 && got != n {
			return 0, fmt.Errorf("%w: conflicting values %q", ErrBadContentLength, vals)
		}
		n = got
	}
	return n, nil
}

func (r *Request) HTTPVersion() conduit.Version    { return r.version }
func (r *Request) ConduitVersion() conduit.Version { return conduit.ProtocolVersion }
func (r *Request) Method() conduit.Method          { return r.method }
func (r *Request) Scheme() conduit.Scheme          { return r.scheme }
func (r *Request) Host() conduit.Host              { return r.host }

// VirtualRoot is never set by this adapter.
func (r *Request) VirtualRoot() (string, bool) { return "", false }

func (r *Request) Path() string                       { return r.path }
func (r *Request) QueryString() (string, bool)        { return r.query, r.hasQuery }
func (r *Request) RemoteAddr() net.Addr               { return r.remote }
func (r *Request) ContentLength() (uint64, bool)      { return r.contentLength, r.hasLength }
func (r *Request) Headers() conduit.Headers           { return r.headers }
func (r *Request) Body() io.Reader                    { return r.body }
func (r *Request) Extensions() conduit.ExtensionView  { return &r.ext }
func (r *Request) MutExtensions() *conduit.Extensions { return &r.ext }
