package diffapi

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monadic/snapdiff/pkg/selection"
)

const namespaceList = `{"kind":"NamespaceList","apiVersion":"v1","metadata":{},"items":[
  {"metadata":{"name":"default","uid":"1"}},
  {"metadata":{"name":"kube-system"}},
  {"metadata":{"name":"team-a"}}
]}`

func TestListNamespaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(namespaceList))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	names, err := c.ListNamespaces(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "kube-system", "team-a"}, names)
}

func TestListResourcesPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"items":[{"metadata":{"name":"res-a"}},{"metadata":{"name":"res-b"}}]}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL + "/")
	require.NoError(t, err)

	key := selection.ListKey{Namespace: "default", Group: "snapshot.example", Version: "v1", Kind: "snapshot"}
	names, err := c.ListResources(context.Background(), key)
	require.NoError(t, err)

	assert.Equal(t, []string{"res-a", "res-b"}, names)
	assert.Equal(t, "/api/default/snapshot.example/v1/snapshot", gotPath)
}

func TestGetArtifacts(t *testing.T) {
	png := base64.StdEncoding.EncodeToString([]byte("PNGBYTES"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/default/snapshot.example/v1/snapshot/home/artifacts", r.URL.Path)
		_, _ = w.Write([]byte(`{"diffAmount":0.1234,"screenshotDiff":"` + png + `"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	sel := selection.Selection{Namespace: "default", Group: "snapshot.example", Version: "v1", Kind: "snapshot", Resource: "home"}
	b, err := c.GetArtifacts(context.Background(), sel)
	require.NoError(t, err)

	require.NotNil(t, b.DiffAmount)
	assert.InDelta(t, 0.1234, *b.DiffAmount, 1e-9)
	assert.Nil(t, b.HTMLDiffAmount)

	data, err := b.Decode(FieldScreenshotDiff)
	require.NoError(t, err)
	assert.Equal(t, "PNGBYTES", string(data))
}

func TestGetArtifactsRequiresResource(t *testing.T) {
	c, err := New("http://127.0.0.1:1")
	require.NoError(t, err)

	_, err = c.GetArtifacts(context.Background(), selection.Selection{Namespace: "default"})
	assert.ErrorContains(t, err, "resource is required")
}

func TestPathSegmentsAreEscaped(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	sel := selection.Selection{Namespace: "a b", Group: "g", Version: "v1", Kind: "k", Resource: "x?y"}
	_, err = c.GetArtifacts(context.Background(), sel)
	require.NoError(t, err)
	assert.Equal(t, "/api/a%20b/g/v1/k/x%3Fy/artifacts", gotPath)
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.ListNamespaces(context.Background())
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Contains(t, err.Error(), "404")
}

func TestMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items": [`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.ListNamespaces(context.Background())
	assert.ErrorContains(t, err, "decode response")
}

func TestCookiesSentWithRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "abc123", cookie.Value)
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithCookies([]string{"session=abc123"}))
	require.NoError(t, err)

	names, err := c.ListNamespaces(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestNewValidation(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)

	_, err = New("http://example.com", WithCookies([]string{"novalue"}))
	assert.ErrorContains(t, err, "invalid cookie")

	c, err := New("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
}

func TestContextCancellationAbortsRequest(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(srv.URL, WithTimeout(5*time.Second))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.ListNamespaces(ctx)
		errCh <- err
	}()
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("request was not aborted")
	}
}
