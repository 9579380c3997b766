package conduit

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethodCoversClosedSet(t *testing.T) {
	for _, m := range Methods() {
		got, err := ParseMethod(m.String())
		require.NoError(t, err, m.String())
		assert.Equal(t, m, got)
	}
	assert.Len(t, Methods(), 9)
}

func TestParseMethodRejectsExtensions(t *testing.T) {
	for _, tok := range []string{"PROPFIND", "get", "", "BREW"} {
		_, err := ParseMethod(tok)
		var ume *UnsupportedMethodError
		require.True(t, errors.As(err, &ume), "token %q", tok)
		assert.Equal(t, tok, ume.Token)
	}
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "1.1", Version{1, 1}.String())
	assert.Equal(t, Version{0, 1}, ProtocolVersion)
}

type requestID string
type userName string

func TestExtensionsTypedSlots(t *testing.T) {
	var ext Extensions
	_, ok := Get[requestID](&ext)
	assert.False(t, ok)

	_, replaced := Insert(&ext, requestID("abc"))
	assert.False(t, replaced)
	Insert(&ext, userName("ann"))
	assert.Equal(t, 2, ext.Len())

	prev, replaced := Insert(&ext, requestID("def"))
	assert.True(t, replaced)
	assert.Equal(t, requestID("abc"), prev)

	id, ok := Get[requestID](&ext)
	require.True(t, ok)
	assert.Equal(t, requestID("def"), id)

	name, ok := Remove[userName](&ext)
	require.True(t, ok)
	assert.Equal(t, userName("ann"), name)
	_, ok = Get[userName](&ext)
	assert.False(t, ok)
	assert.Equal(t, 1, ext.Len())
}

func TestBodies(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Bytes("hi").WriteBody(&buf))
	require.NoError(t, String(" there").WriteBody(&buf))
	require.NoError(t, Reader(strings.NewReader("!")).WriteBody(&buf))
	assert.Equal(t, "hi there!", buf.String())

	resp := &Response{Body: BodyFunc(func(w io.Writer) error {
		_, err := w.Write([]byte("x"))
		return err
	})}
	b, err := resp.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), b)
}
