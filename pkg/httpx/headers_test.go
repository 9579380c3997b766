package httpx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conduithttp/pkg/conduit"
)

func TestHeaderTableFoldsCaseInsensitiveDuplicates(t *testing.T) {
	table := NewHeaderTable([]HeaderLine{
		{"Accept", "text/html"},
		{"X-Trace", "a"},
		{"accept", "application/json"},
		{"ACCEPT", "*/*"},
		{"x-trace", "b"},
	})

	all := table.All()
	require.Len(t, all, 2)
	assert.Equal(t, conduit.HeaderEntry{Name: "Accept", Values: []string{"text/html", "application/json", "*/*"}}, all[0])
	assert.Equal(t, conduit.HeaderEntry{Name: "X-Trace", Values: []string{"a", "b"}}, all[1])
	assert.Equal(t, 2, table.Len())
}

func TestHeaderTableLookupIgnoresCase(t *testing.T) {
	table := NewHeaderTable([]HeaderLine{{"Content-Type", "text/plain"}})
	for _, name := range []string{"content-type", "Content-Type", "CONTENT-TYPE"} {
		v, ok := table.Find(name)
		require.True(t, ok, name)
		assert.Equal(t, []string{"text/plain"}, v)
		assert.True(t, table.Has(name))
	}
	_, ok := table.Find("content-length")
	assert.False(t, ok)
	assert.False(t, table.Has("Content-Length"))
}

func TestHeaderTableKeepsValuesVerbatim(t *testing.T) {
	table := NewHeaderTable([]HeaderLine{
		{"Cache-Control", "no-cache, no-store"},
		{"Cache-Control", " max-age=0 "},
	})
	v, _ := table.Find("cache-control")
	assert.Equal(t, []string{"no-cache, no-store", " max-age=0 "}, v)
}

func TestHeaderTableReturnsCopies(t *testing.T) {
	table := NewHeaderTable([]HeaderLine{{"A", "1"}})
	v, _ := table.Find("a")
	v[0] = "mutated"
	all := table.All()
	all[0].Values[0] = "mutated"

	got, _ := table.Find("A")
	assert.Equal(t, []string{"1"}, got)
}

func TestHeaderTableEmpty(t *testing.T) {
	table := NewHeaderTable(nil)
	assert.Empty(t, table.All())
	_, ok := table.First("Host")
	assert.False(t, ok)
}
