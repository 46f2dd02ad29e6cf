package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rotator "github.com/anatolykoptev/go-rotator"
)

func listServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchMergesAndDedupes(t *testing.T) {
	a := listServer(t, "1.2.3.4:8080\n5.6.7.8:3128\n")
	b := listServer(t, "5.6.7.8:3128\n9.9.9.9:80\n")

	cl := New(
		WithEndpoints(a.URL, b.URL),
		WithUserAgentProvider(rotator.NewStaticUserAgents()),
	)
	ids, err := cl.Fetch(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"http://1.2.3.4:8080",
		"http://5.6.7.8:3128",
		"http://9.9.9.9:80",
	}, ids)
}

func TestFetchSkipsMalformedLines(t *testing.T) {
	srv := listServer(t, "1.2.3.4:8080\nnot a proxy\n1.2.3.4:70000\n\n   \n5.6.7.8:3128\n")

	cl := New(WithEndpoints(srv.URL), WithUserAgentProvider(rotator.NewStaticUserAgents()))
	ids, err := cl.Fetch(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"http://1.2.3.4:8080", "http://5.6.7.8:3128"}, ids)
}

func TestFetchStripsSchemePrefixes(t *testing.T) {
	srv := listServer(t, "http://1.2.3.4:8080\nhttps://5.6.7.8:3128\n")

	cl := New(WithEndpoints(srv.URL), WithUserAgentProvider(rotator.NewStaticUserAgents()))
	ids, err := cl.Fetch(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"http://1.2.3.4:8080", "http://5.6.7.8:3128"}, ids)
}

func TestFetchToleratesFailedEndpoint(t *testing.T) {
	good := listServer(t, "1.2.3.4:8080\n")
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(bad.Close)

	cl := New(WithEndpoints(bad.URL, good.URL), WithUserAgentProvider(rotator.NewStaticUserAgents()))
	ids, err := cl.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"http://1.2.3.4:8080"}, ids)
}

func TestFetchAllEndpointsFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(bad.Close)

	cl := New(WithEndpoints(bad.URL), WithUserAgentProvider(rotator.NewStaticUserAgents()))
	_, err := cl.Fetch(context.Background())
	assert.Error(t, err)
}

func TestFetchSocksScheme(t *testing.T) {
	srv := listServer(t, "1.2.3.4:1080\n")

	cl := New(
		WithEndpoints(srv.URL),
		WithScheme("socks5"),
		WithUserAgentProvider(rotator.NewStaticUserAgents()),
	)
	ids, err := cl.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"socks5://1.2.3.4:1080"}, ids)
}

func TestFetchSendsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.Write([]byte("1.2.3.4:8080\n"))
	}))
	t.Cleanup(srv.Close)

	cl := New(
		WithEndpoints(srv.URL),
		WithUserAgentProvider(rotator.NewStaticUserAgents("list-agent/1.0")),
	)
	_, err := cl.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "list-agent/1.0", got)
}
