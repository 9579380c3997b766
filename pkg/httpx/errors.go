package httpx

import "errors"

var (
	ErrUnsupportedVersion = errors.New("httpx: unsupported http version")
	ErrUnsupportedMethod  = errors.New("httpx: unsupported method")
	ErrUnsupportedTarget  = errors.New("httpx: unsupported request target form")
	ErrMissingHost        = errors.New("httpx: missing host header")
	ErrBadContentLength   = errors.New("httpx: malformed content-length")

	ErrNilResponse  = errors.New("httpx: handler returned no response")
	ErrCommitted    = errors.New("httpx: response already committed")
	ErrOutOfOrder   = errors.New("httpx: stage transition out of order")
	ErrHandlerPanic = errors.New("httpx: handler panicked")
)
