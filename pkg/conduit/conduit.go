// Package conduit defines the transport-independent request/response
// contract that handlers and middleware are written against.
package conduit

import (
	"bytes"
	"io"
	"net"
)

// Request is the neutral view of one inbound HTTP request.
type Request interface {
	HTTPVersion() Version
	ConduitVersion() Version
	Method() Method
	Scheme() Scheme
	Host() Host
	// VirtualRoot is the mount prefix of the application, if any.
	VirtualRoot() (string, bool)
	Path() string
	QueryString() (string, bool)
	RemoteAddr() net.Addr
	ContentLength() (uint64, bool)
	Headers() Headers
	// Body is a single-pass stream; reads may block on transport I/O.
	Body() io.Reader
	Extensions() ExtensionView
	MutExtensions() *Extensions
}

// Status is a response status line.
type Status struct {
	Code   uint16
	Reason string
}

// Body produces the response payload once headers are committed.
type Body interface {
	WriteBody(w io.Writer) error
}

// BodyFunc adapts a function to Body.
type BodyFunc func(w io.Writer) error

func (f BodyFunc) WriteBody(w io.Writer) error { return f(w) }

// Bytes is an in-memory body. An empty slice writes nothing.
type Bytes []byte

func (b Bytes) WriteBody(w io.Writer) error {
	if len(b) == 0 {
		return nil
	}
	_, err := w.Write(b)
	return err
}

// String is an in-memory text body.
type String string

func (s String) WriteBody(w io.Writer) error {
	if s == "" {
		return nil
	}
	_, err := io.WriteString(w, string(s))
	return err
}

// Reader streams r into the response.
func Reader(r io.Reader) Body {
	return BodyFunc(func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	})
}

// Response is the value a handler returns. Status and Headers are final
// once the handler returns; Body runs after they have been written.
type Response struct {
	Status  Status
	Headers map[string][]string
	Body    Body
}

// ReadAll renders the body into memory. Intended for tests and small bodies.
func (r *Response) ReadAll() ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := r.Body.WriteBody(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Handler is the pluggable unit of business logic invoked once per request.
type Handler interface {
	Call(req Request) (*Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(req Request) (*Response, error)

func (f HandlerFunc) Call(req Request) (*Response, error) { return f(req) }
