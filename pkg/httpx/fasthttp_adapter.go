package httpx

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
)

// FastHTTPAdapter adapts a ConnHandler into a fasthttp.RequestHandler.
// Header lines are taken from the raw request in receipt order; run the
// server with DisableHeaderNamesNormalizing to keep their original case and
// StreamRequestBody to avoid buffering bodies.
func FastHTTPAdapter(h *ConnHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		h.Serve(FastHTTPInbound(ctx), newFastHTTPChannel(ctx))
	}
}

// FastHTTPInbound extracts the transport-neutral parts of ctx.
func FastHTTPInbound(ctx *fasthttp.RequestCtx) Inbound {
	in := Inbound{
		Proto:      string(ctx.Request.Header.Protocol()),
		Method:     string(ctx.Method()),
		Target:     string(ctx.RequestURI()),
		RemoteAddr: ctx.RemoteAddr(),
	}

	visit := func(k, v []byte) {
		in.Header = append(in.Header, HeaderLine{Name: string(k), Value: string(v)})
	}
	if len(ctx.Request.Header.RawHeaders()) > 0 {
		ctx.Request.Header.VisitAllInOrder(visit)
	} else {
		// requests built in-process have no raw form
		ctx.Request.Header.VisitAll(visit)
	}

	if s := ctx.RequestBodyStream(); s != nil {
		in.Body = s
	} else {
		in.Body = bytes.NewReader(ctx.PostBody())
	}
	return in
}

type fastHTTPChannel struct {
	ctx           *fasthttp.RequestCtx
	head          bool
	contentLength int
}

func newFastHTTPChannel(ctx *fasthttp.RequestCtx) *fastHTTPChannel {
	ctx.Response.Header.SetNoDefaultContentType(true)
	return &fastHTTPChannel{ctx: ctx, head: ctx.IsHead(), contentLength: -1}
}

func (c *fastHTTPChannel) SetStatus(code int, reason string) {
	c.ctx.SetStatusCode(code)
	if reason != "" {
		c.ctx.Response.Header.SetStatusMessage([]byte(reason))
	}
}

// AddHeader appends one header line. Content-Length is kept aside and
// becomes the stream size; without it the body is chunked.
func (c *fastHTTPChannel) AddHeader(name, value string) {
	if strings.EqualFold(name, "Content-Length") {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n >= 0 {
			c.contentLength = n
		}
		return
	}
	c.ctx.Response.Header.Add(name, value)
}

// Commit installs a stream reader as the response body. fasthttp writes
// the head after the request handler returns and then drains the stream,
// so body runs on the stream's goroutine.
func (c *fastHTTPChannel) Commit(body func(io.Writer) error, done func(error)) error {
	if c.head {
		if c.contentLength >= 0 {
			c.ctx.Response.Header.SetContentLength(c.contentLength)
		}
		c.ctx.Response.SkipBody = true
		done(nil)
		return nil
	}
	sr := fasthttp.NewStreamReader(func(w *bufio.Writer) {
		err := body(w)
		if ferr := w.Flush(); err == nil {
			err = ferr
		}
		done(err)
	})
	c.ctx.Response.SetBodyStream(sr, c.contentLength)
	return nil
}
