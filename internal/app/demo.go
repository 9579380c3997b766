package app

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"

	"conduithttp/pkg/conduit"
	"conduithttp/pkg/logger"
)

// RequestID is attached to every request's extensions by WithRequestID.
type RequestID string

// ErrDemoFailure is returned by the /fail route.
var ErrDemoFailure = errors.New("demo failure requested")

var requestSeq atomic.Uint64

var bodyPool bytebufferpool.Pool

// WithRequestID stores a RequestID extension, taken from X-Request-Id when
// the client sent one, and echoes it on the response.
func WithRequestID(next conduit.Handler) conduit.Handler {
	return conduit.HandlerFunc(func(req conduit.Request) (*conduit.Response, error) {
		id := RequestID(fmt.Sprintf("%016x", requestSeq.Add(1)))
		if v, ok := req.Headers().Find("X-Request-Id"); ok && v[0] != "" {
			id = RequestID(v[0])
		}
		conduit.Insert(req.MutExtensions(), id)

		resp, err := next.Call(req)
		if resp != nil {
			if resp.Headers == nil {
				resp.Headers = map[string][]string{}
			}
			resp.Headers["X-Request-Id"] = []string{string(id)}
		}
		return resp, err
	})
}

// LogRequests logs a redacted summary of each request at debug level.
func LogRequests(next conduit.Handler) conduit.Handler {
	return conduit.HandlerFunc(func(req conduit.Request) (*conduit.Response, error) {
		logger.LogRequest(req)
		return next.Call(req)
	})
}

// DemoHandler serves:
//
//	GET|HEAD /   greeting describing the request
//	POST|PUT /echo  request body echoed back
//	*        /fail  handler error, answered with the 500 fallback
func DemoHandler() conduit.Handler {
	return conduit.HandlerFunc(func(req conduit.Request) (*conduit.Response, error) {
		switch req.Path() {
		case "/":
			if m := req.Method(); m != conduit.MethodGet && m != conduit.MethodHead {
				return methodNotAllowed("GET, HEAD"), nil
			}
			return greet(req), nil
		case "/echo":
			if m := req.Method(); m != conduit.MethodPost && m != conduit.MethodPut {
				return methodNotAllowed("POST, PUT"), nil
			}
			return echo(req)
		case "/fail":
			return nil, ErrDemoFailure
		}
		return textResponse(404, "Not Found", "not found\n"), nil
	})
}

func greet(req conduit.Request) *conduit.Response {
	id, _ := conduit.Get[RequestID](req.Extensions())
	query, _ := req.QueryString()
	var b strings.Builder
	b.WriteString("hello from conduit\n")
	fmt.Fprintf(&b, "method=%s path=%s query=%s\n", req.Method(), req.Path(), query)
	fmt.Fprintf(&b, "host=%s scheme=%s version=%s\n", req.Host(), req.Scheme(), req.HTTPVersion())
	fmt.Fprintf(&b, "request_id=%s\n", id)
	return textResponse(200, "OK", b.String())
}

// echo buffers the request body so the reply always carries Content-Length.
func echo(req conduit.Request) (*conduit.Response, error) {
	buf := bodyPool.Get()
	if n, ok := req.ContentLength(); ok && n <= 1<<20 && uint64(cap(buf.B)) < n {
		buf.B = make([]byte, 0, n)
	}
	if _, err := buf.ReadFrom(req.Body()); err != nil {
		bodyPool.Put(buf)
		return nil, fmt.Errorf("read request body: %w", err)
	}

	ct := []string{"application/octet-stream"}
	if v, ok := req.Headers().Find("Content-Type"); ok {
		ct = v
	}
	return &conduit.Response{
		Status: conduit.Status{Code: 200, Reason: "OK"},
		Headers: map[string][]string{
			"Content-Type":   ct,
			"Content-Length": {strconv.Itoa(buf.Len())},
		},
		Body: conduit.BodyFunc(func(w io.Writer) error {
			defer bodyPool.Put(buf)
			if buf.Len() == 0 {
				return nil
			}
			_, err := w.Write(buf.B)
			return err
		}),
	}, nil
}

func methodNotAllowed(allow string) *conduit.Response {
	resp := textResponse(405, "Method Not Allowed", "method not allowed\n")
	resp.Headers["Allow"] = []string{allow}
	return resp
}

func textResponse(code uint16, reason, body string) *conduit.Response {
	return &conduit.Response{
		Status: conduit.Status{Code: code, Reason: reason},
		Headers: map[string][]string{
			"Content-Type":   {"text/plain; charset=utf-8"},
			"Content-Length": {strconv.Itoa(len(body))},
		},
		Body: conduit.String(body),
	}
}
