package httpx

import (
	"errors"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conduithttp/pkg/conduit"
)

func inbound(method, target string, lines ...HeaderLine) Inbound {
	return Inbound{
		Proto:      "HTTP/1.1",
		Method:     method,
		Target:     target,
		Header:     append([]HeaderLine{{"Host", "example.com:8080"}}, lines...),
		RemoteAddr: &net.TCPAddr{IP: net.IPv4(10, 0, 0, 7), Port: 51234},
	}
}

func TestRequestQuerySplitting(t *testing.T) {
	cases := []struct {
		target   string
		path     string
		query    string
		hasQuery bool
	}{
		{"/a/b?x=1&y=2", "/a/b", "x=1&y=2", true},
		{"/a/b", "/a/b", "", false},
		{"/a/b?", "/a/b", "", true},
		{"/?a?b", "/", "a?b", true},
		{"/", "/", "", false},
	}
	for _, tc := range cases {
		req, err := NewRequest(inbound("GET", tc.target), conduit.SchemeHTTP)
		require.NoError(t, err, tc.target)
		assert.Equal(t, tc.path, req.Path(), tc.target)
		q, ok := req.QueryString()
		assert.Equal(t, tc.hasQuery, ok, tc.target)
		assert.Equal(t, tc.query, q, tc.target)
	}
}

func TestRequestMethodMapping(t *testing.T) {
	for _, m := range conduit.Methods() {
		req, err := NewRequest(inbound(m.String(), "/"), conduit.SchemeHTTP)
		require.NoError(t, err)
		assert.Equal(t, m, req.Method())
	}

	_, err := NewRequest(inbound("PROPFIND", "/"), conduit.SchemeHTTP)
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
	assert.Contains(t, err.Error(), "PROPFIND")
}

func TestRequestVersions(t *testing.T) {
	cases := map[string]conduit.Version{
		"HTTP/0.9": {Major: 0, Minor: 9},
		"HTTP/1.0": {Major: 1, Minor: 0},
		"HTTP/1.1": {Major: 1, Minor: 1},
		"HTTP/2.0": {Major: 2, Minor: 0},
		"HTTP/2":   {Major: 2, Minor: 0},
	}
	for proto, want := range cases {
		in := inbound("GET", "/")
		in.Proto = proto
		req, err := NewRequest(in, conduit.SchemeHTTP)
		require.NoError(t, err, proto)
		assert.Equal(t, want, req.HTTPVersion(), proto)
	}

	in := inbound("GET", "/")
	in.Proto = "HTTP/3"
	_, err := NewRequest(in, conduit.SchemeHTTP)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestRequestRejectsNonAbsolutePathTargets(t *testing.T) {
	for _, target := range []string{"*", "example.com:443", "http://example.com/x", ""} {
		_, err := NewRequest(inbound("OPTIONS", target), conduit.SchemeHTTP)
		assert.ErrorIs(t, err, ErrUnsupportedTarget, target)
	}
}

func TestRequestHost(t *testing.T) {
	req, err := NewRequest(inbound("GET", "/"), conduit.SchemeHTTPS)
	require.NoError(t, err)
	assert.Equal(t, "example.com", req.Host().Name)
	assert.Equal(t, conduit.SchemeHTTPS, req.Scheme())

	in := inbound("GET", "/")
	in.Header = []HeaderLine{{"host", "[::1]:9000"}}
	req, err = NewRequest(in, conduit.SchemeHTTP)
	require.NoError(t, err)
	assert.Equal(t, "::1", req.Host().Name)

	in.Header = []HeaderLine{{"Accept", "*/*"}}
	_, err = NewRequest(in, conduit.SchemeHTTP)
	assert.True(t, errors.Is(err, ErrMissingHost))
}

func TestRequestContentLength(t *testing.T) {
	req, err := NewRequest(inbound("POST", "/", HeaderLine{"Content-Length", "42"}), conduit.SchemeHTTP)
	require.NoError(t, err)
	n, ok := req.ContentLength()
	assert.True(t, ok)
	assert.Equal(t, uint64(42), n)

	req, err = NewRequest(inbound("POST", "/"), conduit.SchemeHTTP)
	require.NoError(t, err)
	_, ok = req.ContentLength()
	assert.False(t, ok)

	_, err = NewRequest(inbound("POST", "/", HeaderLine{"Content-Length", "-1"}), conduit.SchemeHTTP)
	assert.ErrorIs(t, err, ErrBadContentLength)

	_, err = NewRequest(inbound("POST", "/",
		HeaderLine{"Content-Length", "1"}, HeaderLine{"content-length", "2"}), conduit.SchemeHTTP)
	assert.ErrorIs(t, err, ErrBadContentLength)
}

func TestRequestPassThroughFields(t *testing.T) {
	in := inbound("PUT", "/up", HeaderLine{"X-A", "1"})
	in.Body = strings.NewReader("payload")
	req, err := NewRequest(in, conduit.SchemeHTTP)
	require.NoError(t, err)

	assert.Equal(t, in.RemoteAddr, req.RemoteAddr())
	assert.Equal(t, conduit.ProtocolVersion, req.ConduitVersion())
	_, ok := req.VirtualRoot()
	assert.False(t, ok)
	assert.True(t, req.Headers().Has("x-a"))

	b, err := io.ReadAll(req.Body())
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))

	empty, err := NewRequest(inbound("GET", "/"), conduit.SchemeHTTP)
	require.NoError(t, err)
	b, err = io.ReadAll(empty.Body())
	require.NoError(t, err)
	assert.Empty(t, b)
}

type sessionID string

func TestRequestExtensionsAreScopedToOneRequest(t *testing.T) {
	first, err := NewRequest(inbound("GET", "/"), conduit.SchemeHTTP)
	require.NoError(t, err)
	conduit.Insert(first.MutExtensions(), sessionID("s-1"))

	got, ok := conduit.Get[sessionID](first.Extensions())
	require.True(t, ok)
	assert.Equal(t, sessionID("s-1"), got)

	second, err := NewRequest(inbound("GET", "/"), conduit.SchemeHTTP)
	require.NoError(t, err)
	_, ok = conduit.Get[sessionID](second.Extensions())
	assert.False(t, ok)
	assert.Zero(t, second.Extensions().Len())
}
