package httpx

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conduithttp/pkg/conduit"
)

func TestNetHTTPAdapterRoundTrip(t *testing.T) {
	var gotHost, gotQuery string
	var gotValues []string
	var gotVersion conduit.Version
	h := &ConnHandler{
		Handler: conduit.HandlerFunc(func(req conduit.Request) (*conduit.Response, error) {
			gotHost = req.Host().Name
			gotQuery, _ = req.QueryString()
			gotValues, _ = req.Headers().Find("x-multi")
			gotVersion = req.HTTPVersion()
			body, err := io.ReadAll(req.Body())
			if err != nil {
				return nil, err
			}
			return &conduit.Response{
				Status:  conduit.Status{Code: 202, Reason: "Accepted"},
				Headers: map[string][]string{"X-Echo": {"1", "2"}},
				Body:    conduit.Bytes(body),
			}, nil
		}),
		Log: quietLogger(),
	}

	r := httptest.NewRequest(http.MethodPost, "/ingest?batch=7", strings.NewReader("payload"))
	r.Host = "svc.internal:9090"
	r.Header.Add("X-Multi", "a")
	r.Header.Add("X-Multi", "b")
	rec := httptest.NewRecorder()
	NetHTTPAdapter(h).ServeHTTP(rec, r)

	assert.Equal(t, 202, rec.Code)
	assert.Equal(t, "payload", rec.Body.String())
	assert.Equal(t, []string{"1", "2"}, rec.Header()["X-Echo"])
	assert.Equal(t, "svc.internal", gotHost)
	assert.Equal(t, "batch=7", gotQuery)
	assert.Equal(t, []string{"a", "b"}, gotValues)
	assert.Equal(t, conduit.Version{Major: 1, Minor: 1}, gotVersion)
}

func TestNetHTTPAdapterErrorFallback(t *testing.T) {
	h := &ConnHandler{
		Handler: conduit.HandlerFunc(func(conduit.Request) (*conduit.Response, error) {
			return nil, errors.New("boom")
		}),
		Log: quietLogger(),
	}
	srv := httptest.NewServer(NetHTTPAdapter(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/anything")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "boom", string(body))
}

func TestNetHTTPInboundPutsHostFirst(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/a?b", nil)
	r.RemoteAddr = "192.0.2.1:4444"
	r.Header.Set("Zeta", "z")
	r.Header.Set("Alpha", "a")

	in := NetHTTPInbound(r)
	require.Len(t, in.Header, 3)
	assert.Equal(t, HeaderLine{"Host", "example.com"}, in.Header[0])
	assert.Equal(t, "Alpha", in.Header[1].Name)
	assert.Equal(t, "Zeta", in.Header[2].Name)
	assert.Equal(t, "/a?b", in.Target)
	assert.Equal(t, "192.0.2.1:4444", in.RemoteAddr.String())
}

func TestNetHTTPHeadSkipsBody(t *testing.T) {
	h := &ConnHandler{
		Handler: conduit.HandlerFunc(func(conduit.Request) (*conduit.Response, error) {
			return &conduit.Response{Status: conduit.Status{Code: 200}, Body: conduit.String("ignored")}, nil
		}),
		Log: quietLogger(),
	}
	rec := httptest.NewRecorder()
	NetHTTPAdapter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Empty(t, rec.Body.String())
}
