package httpx

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"conduithttp/pkg/conduit"
	"conduithttp/pkg/metrics"
	"conduithttp/pkg/telemetry"
)

// Stage is a step of the per-request lifecycle.
type Stage uint8

const (
	StageReceived Stage = iota
	StageAdapted
	StageHandlerInvoked
	StageResponseChosen
	StageEmitted
)

func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageAdapted:
		return "adapted"
	case StageHandlerInvoked:
		return "handler_invoked"
	case StageResponseChosen:
		return "response_chosen"
	case StageEmitted:
		return "emitted"
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

// lifecycle only moves forward one stage at a time.
type lifecycle struct {
	stage Stage
}

func (l *lifecycle) advance(to Stage) error {
	if to != l.stage+1 {
		return fmt.Errorf("%w: %s -> %s", ErrOutOfOrder, l.stage, to)
	}
	l.stage = to
	return nil
}

// ConnHandler runs one request through adapt, invoke, choose and emit.
// A ConnHandler is safe for concurrent use; all per-request state lives in
// Serve's frame.
type ConnHandler struct {
	Handler conduit.Handler
	// Scheme is fixed by the listener that produced the connection.
	Scheme conduit.Scheme

	Log       *slog.Logger
	Metrics   *metrics.Metrics
	Telemetry *telemetry.Telemetry

	// OnStage, when set, is called after every lifecycle transition.
	OnStage func(Stage)
}

func (h *ConnHandler) log() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}

// Serve handles one inbound request and writes exactly one response to ch.
// Requests that cannot be adapted are answered with RejectResponse without
// invoking the handler. Handler errors become ErrorResponse. Failures after
// that point are logged and counted; nothing further is written.
func (h *ConnHandler) Serve(in Inbound, ch ResponseChannel) {
	start := time.Now()
	defer h.Metrics.TrackInFlight()()
	tr := h.Telemetry.Track("request")

	var lc lifecycle
	step := func(s Stage) {
		if err := lc.advance(s); err != nil {
			h.log().Error("httpx: lifecycle", "err", err)
			return
		}
		tr.Mark(s.String())
		if h.OnStage != nil {
			h.OnStage(s)
		}
	}

	req, err := NewRequest(in, h.Scheme)
	if err != nil {
		h.reject(in, ch, err, start, tr)
		return
	}
	step(StageAdapted)

	resp, err := h.invoke(req)
	step(StageHandlerInvoked)
	if err != nil {
		h.log().Warn("handler failed",
			"method", in.Method, "path", req.Path(), "remote", addrString(in.RemoteAddr), "err", err)
		h.Metrics.Failure(StageHandlerInvoked.String(), "handler")
		resp = ErrorResponse(err)
	}
	step(StageResponseChosen)

	method := req.Method().String()
	code := int(resp.Status.Code)
	em := NewEmitter(ch)
	done := func(err error) {
		if err != nil {
			h.log().Error("response body stream failed",
				"method", method, "path", req.Path(), "status", code, "written", em.Written(), "err", err)
			h.Metrics.Failure(StageEmitted.String(), "stream")
		}
		h.Metrics.ObserveRequest(method, code, time.Since(start), em.Written())
		tr.Finish()
	}
	if err := em.Emit(resp, done); err != nil {
		h.log().Error("response commit failed",
			"method", method, "path", req.Path(), "status", code, "err", err)
		h.Metrics.Failure(StageResponseChosen.String(), "commit")
		tr.Finish()
		return
	}
	step(StageEmitted)
}

// invoke calls the handler, turning panics and empty results into errors.
func (h *ConnHandler) invoke(req *Request) (resp *conduit.Response, err error) {
	defer func() {
		if p := recover(); p != nil {
			h.log().Error("handler panic", "panic", p, "path", req.Path())
			resp, err = nil, fmt.Errorf("%w: %v", ErrHandlerPanic, p)
		}
	}()
	resp, err = h.Handler.Call(req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrNilResponse
	}
	return resp, nil
}

func (h *ConnHandler) reject(in Inbound, ch ResponseChannel, cause error, start time.Time, tr *telemetry.Trace) {
	resp := RejectResponse(cause)
	reason := rejectReason(cause)
	h.log().Info("request rejected",
		"method", in.Method, "target", in.Target, "proto", in.Proto,
		"remote", addrString(in.RemoteAddr), "status", resp.Status.Code, "err", cause)
	h.Metrics.Rejected(reason)
	tr.Mark("reject")
	err := Emit(ch, resp, func(err error) {
		if err != nil {
			h.log().Error("rejection body stream failed", "err", err)
		}
		h.Metrics.ObserveRequest(methodLabel(in.Method), int(resp.Status.Code), time.Since(start), 0)
		tr.Finish()
	})
	if err != nil {
		h.log().Error("rejection commit failed", "err", err)
		h.Metrics.Failure(StageReceived.String(), "commit")
		tr.Finish()
	}
}

// ErrorResponse is the fallback for a failed handler: 500 with the error
// text as the whole body.
func ErrorResponse(err error) *conduit.Response {
	return &conduit.Response{
		Status:  conduit.Status{Code: http.StatusInternalServerError, Reason: "Internal Server Error"},
		Headers: map[string][]string{},
		Body:    conduit.String(err.Error()),
	}
}

// RejectResponse answers a request that failed adaptation. Unsupported
// methods get 501, unsupported versions 505, everything else 400. The
// connection is marked for close.
func RejectResponse(err error) *conduit.Response {
	code := http.StatusBadRequest
	switch {
	case errors.Is(err, ErrUnsupportedMethod):
		code = http.StatusNotImplemented
	case errors.Is(err, ErrUnsupportedVersion):
		code = http.StatusHTTPVersionNotSupported
	}
	return &conduit.Response{
		Status: conduit.Status{Code: uint16(code), Reason: http.StatusText(code)},
		Headers: map[string][]string{
			"Connection":   {"close"},
			"Content-Type": {"text/plain; charset=utf-8"},
		},
		Body: conduit.String(err.Error() + "\n"),
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedMethod):
		return "method"
	case errors.Is(err, ErrUnsupportedVersion):
		return "version"
	case errors.Is(err, ErrUnsupportedTarget):
		return "target"
	case errors.Is(err, ErrMissingHost):
		return "host"
	case errors.Is(err, ErrBadContentLength):
		return "content_length"
	}
	return "other"
}

// methodLabel keeps metric label values inside the closed method set.
func methodLabel(token string) string {
	if m, err := conduit.ParseMethod(token); err == nil {
		return m.String()
	}
	return "OTHER"
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
