package httpx

import (
	"strings"

	"conduithttp/pkg/conduit"
)

// headerKey is the folded form of a header name. Every insertion and
// lookup in HeaderTable goes through newHeaderKey.
type headerKey string

func newHeaderKey(name string) headerKey {
	return headerKey(strings.ToLower(name))
}

// HeaderLine is one raw name/value line as delivered by the transport.
type HeaderLine struct {
	Name  string
	Value string
}

// HeaderTable groups raw header lines by case-insensitive name. The first
// spelling seen for a name is kept, entries are ordered by first
// occurrence, and values keep receipt order without splitting or trimming.
// A table is immutable after construction.
type HeaderTable struct {
	index   map[headerKey]int
	entries []conduit.HeaderEntry
}

var _ conduit.Headers = (*HeaderTable)(nil)

// NewHeaderTable folds lines into a table.
func NewHeaderTable(lines []HeaderLine) *HeaderTable {
	t := &HeaderTable{index: make(map[headerKey]int, len(lines))}
	for _, l := range lines {
		k := newHeaderKey(l.Name)
		if i, ok := t.index[k]; ok {
			t.entries[i].Values = append(t.entries[i].Values, l.Value)
			continue
		}
		t.index[k] = len(t.entries)
		t.entries = append(t.entries, conduit.HeaderEntry{Name: l.Name, Values: []string{l.Value}})
	}
	return t
}

// Find returns a copy of the values for name.
func (t *HeaderTable) Find(name string) ([]string, bool) {
	i, ok := t.index[newHeaderKey(name)]
	if !ok {
		return nil, false
	}
	return append([]string(nil), t.entries[i].Values...), true
}

// First returns the first value for name.
func (t *HeaderTable) First(name string) (string, bool) {
	i, ok := t.index[newHeaderKey(name)]
	if !ok {
		return "", false
	}
	return t.entries[i].Values[0], true
}

func (t *HeaderTable) Has(name string) bool {
	_, ok := t.index[newHeaderKey(name)]
	return ok
}

// All returns every entry in first-occurrence order.
func (t *HeaderTable) All() []conduit.HeaderEntry {
	out := make([]conduit.HeaderEntry, len(t.entries))
	for i, e := range t.entries {
		out[i] = conduit.HeaderEntry{Name: e.Name, Values: append([]string(nil), e.Values...)}
	}
	return out
}

// Len is the number of distinct header names.
func (t *HeaderTable) Len() int { return len(t.entries) }
