package httpx

import (
	"io"
	"net"
	"net/http"
	"net/netip"
	"sort"
)

// NetHTTPAdapter adapts a ConnHandler into a standard net/http handler.
//
// net/http has already folded headers into a map, so lines arrive grouped
// by canonical name in sorted order with a synthesized Host line first.
// Reason phrases are not representable; net/http writes its own.
func NetHTTPAdapter(h *ConnHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Serve(NetHTTPInbound(r), &netHTTPChannel{w: w, head: r.Method == http.MethodHead})
	})
}

// NetHTTPInbound extracts the transport-neutral parts of r.
func NetHTTPInbound(r *http.Request) Inbound {
	in := Inbound{
		Proto:      r.Proto,
		Method:     r.Method,
		Target:     r.RequestURI,
		RemoteAddr: parseRemoteAddr(r.RemoteAddr),
		Body:       r.Body,
	}
	if in.Target == "" && r.URL != nil {
		in.Target = r.URL.RequestURI()
	}
	if r.Host != "" {
		in.Header = append(in.Header, HeaderLine{Name: "Host", Value: r.Host})
	}
	keys := make([]string, 0, len(r.Header))
	for k := range r.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range r.Header[k] {
			in.Header = append(in.Header, HeaderLine{Name: k, Value: v})
		}
	}
	return in
}

type stringAddr string

func (a stringAddr) Network() string { return "tcp" }
func (a stringAddr) String() string  { return string(a) }

func parseRemoteAddr(s string) net.Addr {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return net.TCPAddrFromAddrPort(ap)
	}
	if s == "" {
		return nil
	}
	return stringAddr(s)
}

type netHTTPChannel struct {
	w    http.ResponseWriter
	code int
	head bool
}

func (c *netHTTPChannel) SetStatus(code int, _ string) {
	c.code = code
}

// AddHeader writes into the header map directly so the name keeps the
// handler's spelling.
func (c *netHTTPChannel) AddHeader(name, value string) {
	hdr := c.w.Header()
	hdr[name] = append(hdr[name], value)
}

// Commit writes the head, streams the body and flushes, all before
// returning.
func (c *netHTTPChannel) Commit(body func(io.Writer) error, done func(error)) error {
	code := c.code
	if code < 100 || code > 999 {
		code = http.StatusOK
	}
	c.w.WriteHeader(code)
	var err error
	if !c.head {
		err = body(c.w)
	}
	if f, ok := c.w.(http.Flusher); ok {
		f.Flush()
	}
	done(err)
	return nil
}
