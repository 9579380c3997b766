package conduit

import (
	"fmt"
	"strings"
)

// Version is a major.minor protocol version pair.
type Version struct {
	Major uint8
	Minor uint8
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// ProtocolVersion is the version of the handler contract implemented by
// this package. Request.ConduitVersion always reports it.
var ProtocolVersion = Version{Major: 0, Minor: 1}

// Method is the closed set of request methods a handler can observe.
type Method uint8

const (
	MethodConnect Method = iota + 1
	MethodDelete
	MethodGet
	MethodHead
	MethodOptions
	MethodPatch
	MethodPost
	MethodPut
	MethodTrace
)

var methodNames = [...]string{
	MethodConnect: "CONNECT",
	MethodDelete:  "DELETE",
	MethodGet:     "GET",
	MethodHead:    "HEAD",
	MethodOptions: "OPTIONS",
	MethodPatch:   "PATCH",
	MethodPost:    "POST",
	MethodPut:     "PUT",
	MethodTrace:   "TRACE",
}

// Methods lists every supported method in declaration order.
func Methods() []Method {
	return []Method{
		MethodConnect, MethodDelete, MethodGet, MethodHead, MethodOptions,
		MethodPatch, MethodPost, MethodPut, MethodTrace,
	}
}

func (m Method) String() string {
	if m == 0 || int(m) >= len(methodNames) {
		return fmt.Sprintf("Method(%d)", uint8(m))
	}
	return methodNames[m]
}

// UnsupportedMethodError reports a method token outside the closed set.
type UnsupportedMethodError struct {
	Token string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("conduit: unsupported method %q", e.Token)
}

// ParseMethod maps a wire method token to a Method. Tokens are case
// sensitive; extension methods are rejected with *UnsupportedMethodError.
func ParseMethod(token string) (Method, error) {
	for _, m := range Methods() {
		if methodNames[m] == token {
			return m, nil
		}
	}
	return 0, &UnsupportedMethodError{Token: token}
}

// Scheme identifies whether the connection arrived on a plain or TLS listener.
type Scheme uint8

const (
	SchemeHTTP Scheme = iota
	SchemeHTTPS
)

func (s Scheme) String() string {
	if s == SchemeHTTPS {
		return "https"
	}
	return "http"
}

// Host is the request authority. Only name-based hosts are modelled.
type Host struct {
	Name string
}

func (h Host) String() string { return h.Name }

// HeaderEntry is one logical header with all of its values in receipt order.
type HeaderEntry struct {
	Name   string
	Values []string
}

// Headers is read-only, case-insensitive access to request headers.
type Headers interface {
	Find(name string) ([]string, bool)
	Has(name string) bool
	All() []HeaderEntry
}

// Join returns the values of e separated by ", ".
func (e HeaderEntry) Join() string {
	return strings.Join(e.Values, ", ")
}
