package logger

import (
	"strings"

	"conduithttp/pkg/conduit"
)

var sensitive = map[string]struct{}{
	"authorization":       {},
	"proxy-authorization": {},
	"cookie":              {},
	"x-api-key":           {},
}

func redactHeaderValue(k, v string) string {
	if v == "" {
		return ""
	}
	if _, ok := sensitive[strings.ToLower(k)]; ok {
		return "<redacted>"
	}
	return v
}

// SafeHeaders returns a compact string representation of headers suitable for
// logging with sensitive values redacted. Only the first value of each
// header is shown.
func SafeHeaders(h conduit.Headers) string {
	all := h.All()
	parts := make([]string, 0, len(all))
	for _, e := range all {
		if len(e.Values) == 0 {
			continue
		}
		parts = append(parts, e.Name+"="+redactHeaderValue(e.Name, e.Values[0]))
	}
	return strings.Join(parts, "; ")
}

// LogRequest logs a concise, safe summary of an incoming request.
func LogRequest(req conduit.Request) {
	if Log == nil {
		return
	}
	Log.Debug("incoming_request",
		"method", req.Method().String(),
		"path", req.Path(),
		"remote", addr(req),
		"headers", SafeHeaders(req.Headers()),
	)
}

func addr(req conduit.Request) string {
	if a := req.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}
