package httpx

import (
	"fmt"
	"io"
	"sort"
	"sync/atomic"

	"conduithttp/pkg/conduit"
)

// ResponseChannel is the write side of a transport connection.
//
// SetStatus and AddHeader stage the head of the response. Commit hands the
// head to the transport, which writes it and then calls body at most once
// with the open body stream. done receives the body's result once the body
// has been handed off; the transport may run body and done on another
// goroutine after Commit returns. If Commit returns an error, done is never
// called.
type ResponseChannel interface {
	SetStatus(code int, reason string)
	AddHeader(name, value string)
	Commit(body func(w io.Writer) error, done func(err error)) error
}

type phase uint32

const (
	phaseFresh phase = iota
	phaseCommitted
	phaseFinished
)

func (p phase) String() string {
	switch p {
	case phaseFresh:
		return "fresh"
	case phaseCommitted:
		return "committed"
	case phaseFinished:
		return "finished"
	}
	return "unknown"
}

// Emitter drives a ResponseChannel through fresh -> committed -> finished.
// Head mutations after Commit fail with ErrCommitted.
type Emitter struct {
	ch      ResponseChannel
	phase   atomic.Uint32
	written atomic.Int64
}

func NewEmitter(ch ResponseChannel) *Emitter {
	return &Emitter{ch: ch}
}

func (e *Emitter) current() phase { return phase(e.phase.Load()) }

func (e *Emitter) SetStatus(s conduit.Status) error {
	if p := e.current(); p != phaseFresh {
		return fmt.Errorf("%w: set status in phase %s", ErrCommitted, p)
	}
	e.ch.SetStatus(int(s.Code), s.Reason)
	return nil
}

func (e *Emitter) AddHeader(name, value string) error {
	if p := e.current(); p != phaseFresh {
		return fmt.Errorf("%w: add header %q in phase %s", ErrCommitted, name, p)
	}
	e.ch.AddHeader(name, value)
	return nil
}

// Commit closes the head and schedules body. It may be called once.
func (e *Emitter) Commit(body conduit.Body, done func(error)) error {
	if !e.phase.CompareAndSwap(uint32(phaseFresh), uint32(phaseCommitted)) {
		return fmt.Errorf("%w: commit in phase %s", ErrCommitted, e.current())
	}
	write := func(w io.Writer) error {
		if body == nil {
			return nil
		}
		return body.WriteBody(&countingWriter{w: w, n: &e.written})
	}
	finish := func(err error) {
		e.phase.Store(uint32(phaseFinished))
		if done != nil {
			done(err)
		}
	}
	if err := e.ch.Commit(write, finish); err != nil {
		e.phase.Store(uint32(phaseFinished))
		return fmt.Errorf("httpx: commit response head: %w", err)
	}
	return nil
}

// Written reports body bytes handed to the transport so far.
func (e *Emitter) Written() int64 { return e.written.Load() }

// Emit writes resp to ch: status, then every header value as its own line
// with names in sorted order, then a single commit that streams the body.
// A returned error means the head could not be committed; body failures
// arrive through done.
func Emit(ch ResponseChannel, resp *conduit.Response, done func(error)) error {
	return NewEmitter(ch).Emit(resp, done)
}

func (e *Emitter) Emit(resp *conduit.Response, done func(error)) error {
	if err := e.SetStatus(resp.Status); err != nil {
		return err
	}
	names := make([]string, 0, len(resp.Headers))
	for name := range resp.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range resp.Headers[name] {
			if err := e.AddHeader(name, v); err != nil {
				return err
			}
		}
	}
	return e.Commit(resp.Body, done)
}

type countingWriter struct {
	w io.Writer
	n *atomic.Int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(int64(n))
	return n, err
}
