package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProxyFunc(t *testing.T) {
	fn := NewProxyFunc("http://proxy:3128", "", "api.local")

	req, _ := http.NewRequest(http.MethodGet, "https://api.archives-ouvertes.fr/search/", nil)
	u, err := fn(req)
	require.NoError(t, err)
	assert.Equal(t, "proxy:3128", u.Host, "https falls back to the http proxy")

	req, _ = http.NewRequest(http.MethodGet, "http://api.local/x", nil)
	u, err = fn(req)
	require.NoError(t, err)
	assert.Nil(t, u, "no_proxy host goes direct")
}

func TestNewHTTPClient(t *testing.T) {
	proxy := func(*http.Request) (*url.URL, error) { return nil, nil }
	c := NewHTTPClient(5*time.Second, proxy)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.NotNil(t, c.Transport.(*http.Transport).Proxy)
}

func TestRobotsChecker(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fetches.Add(1)
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\nCrawl-delay: 2\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rc := NewRobotsChecker("absredact-test", srv.Client())
	ctx := context.Background()

	delay, err := rc.Check(ctx, srv.URL+"/search/")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, delay)

	_, err = rc.Check(ctx, srv.URL+"/private/x")
	assert.ErrorIs(t, err, ErrDisallowed)
	assert.Equal(t, int32(1), fetches.Load(), "robots.txt fetched once per host")
}

func TestRobotsChecker_MissingAllows(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	rc := NewRobotsChecker("absredact-test", srv.Client())
	_, err := rc.Check(context.Background(), srv.URL+"/anything")
	assert.NoError(t, err)
}
