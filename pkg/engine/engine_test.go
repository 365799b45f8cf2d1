package engine

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/objectedge/occ-tools-sub002/pkg/matcher"
	"github.com/objectedge/occ-tools-sub002/pkg/proxy"
	"github.com/objectedge/occ-tools-sub002/pkg/store"
	"github.com/objectedge/occ-tools-sub002/pkg/toggles"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *store.Store
	env      *store.Environment
	toggles  *toggles.Registry
	engine   *Engine
	upstream *httptest.Server
	hits     atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}
	f.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := f.hits.Add(1)
		size, _ := io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Upstream-Hit", strconv.FormatInt(n, 10))
		w.Header().Set("X-Upstream-Body-Bytes", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"path":"` + r.URL.EscapedPath() + `","query":"` + r.URL.RawQuery + `"}`))
	}))
	t.Cleanup(f.upstream.Close)

	ctx := context.Background()
	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	f.store = s

	f.env = &store.Environment{Name: "dev", RemoteBaseURL: f.upstream.URL}
	require.NoError(t, s.UpsertEnvironment(ctx, f.env))

	f.toggles = toggles.New(false, false)
	f.engine = New(f.env, matcher.New(s), proxy.New(s, proxy.Options{SchemaPath: "recorded"}), f.toggles)
	return f
}

func (f *fixture) do(method, target, body string, header http.Header) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		r.Header[k] = v
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, r)
	return rec
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"/proxy/ccstoreui/v1/products": "/ccstoreui/v1/products",
		"/proxy":                       "/",
		"/proxyish/x":                  "/proxyish/x",
		"/ccstoreui/v1/cart":           "/ccstoreui/v1/cart",
		"relative":                     "/relative",
		"/proxy/a//b":                  "/a//b",
		"/proxy/files/a%2Fb":           "/files/a%2Fb",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePath(in), in)
	}
}

func TestRecordThenReplay(t *testing.T) {
	f := newFixture(t)

	f.toggles.SetSync(true)
	live := f.do(http.MethodGet, "/proxy/ccstoreui/v1/products?limit=5", "", nil)
	require.Equal(t, http.StatusOK, live.Code)
	require.Equal(t, int64(1), f.hits.Load())

	f.toggles.SetSync(false)
	replay := f.do(http.MethodGet, "/proxy/ccstoreui/v1/products?limit=5", "", nil)

	assert.Equal(t, int64(1), f.hits.Load(), "replay must not reach upstream")
	assert.Equal(t, live.Code, replay.Code)
	assert.Equal(t, live.Body.String(), replay.Body.String())
	assert.Equal(t, live.Header(), replay.Header())
}

func TestPathIsForwardedAsSent(t *testing.T) {
	f := newFixture(t)

	tests := map[string]string{
		"/proxy/a//b":           "/a//b",
		"/proxy/files/a%2Fb":    "/files/a%2Fb",
		"/proxy/search/x%20y/z": "/search/x%20y/z",
	}
	for target, want := range tests {
		rec := f.do(http.MethodGet, target, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.Contains(t, rec.Body.String(), `"path":"`+want+`"`, target)
	}
}

func TestOversizedBodyIsStreamedUpstream(t *testing.T) {
	f := newFixture(t)
	f.engine = New(f.env, matcher.New(f.store), proxy.New(f.store, proxy.Options{MaxRecordBytes: 64}), f.toggles)
	f.toggles.SetSync(true)

	body := bytes.Repeat([]byte("x"), 1000)
	rec := f.do(http.MethodPost, "/proxy/upload", string(body), http.Header{"Content-Type": {"application/octet-stream"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "1000", rec.Header().Get("X-Upstream-Body-Bytes"))
	assert.Equal(t, int64(1), f.hits.Load())

	descriptors, err := f.store.ListDescriptors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, descriptors, "oversized requests are not recorded")

	// A body within the limit is still buffered and recorded
	rec = f.do(http.MethodPost, "/proxy/upload", "small", http.Header{"Content-Type": {"application/octet-stream"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("X-Upstream-Body-Bytes"))
	descriptors, err = f.store.ListDescriptors(context.Background())
	require.NoError(t, err)
	assert.Len(t, descriptors, 1)
}

func TestUnmatchedRequestFallsBackWithoutRecording(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/proxy/unknown", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), f.hits.Load())

	descriptors, err := f.store.ListDescriptors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, descriptors)
}

func TestForceProxyBypassesStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	get, err := f.store.MethodTypeByName(ctx, "GET")
	require.NoError(t, err)
	require.NoError(t, f.store.CreateDescriptor(ctx, &store.Descriptor{
		MethodTypeID: get.ID, URL: "/local", Enabled: true, ResponseStatusCode: 200,
		ResponseData: []store.ResponseData{{Data: "local"}},
	}))

	rec := f.do(http.MethodGet, "/proxy/local", "", nil)
	assert.Equal(t, "local", rec.Body.String())
	assert.Equal(t, int64(0), f.hits.Load())

	f.toggles.SetForceProxy(true)
	rec = f.do(http.MethodGet, "/proxy/local", "", nil)
	assert.Contains(t, rec.Body.String(), `"path":"/local"`)
	assert.Equal(t, int64(1), f.hits.Load())
}

func TestVariantSelectionAndFixtureErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	get, err := f.store.MethodTypeByName(ctx, "GET")
	require.NoError(t, err)

	d := &store.Descriptor{
		MethodTypeID: get.ID, URL: "/variants", Enabled: true, ResponseStatusCode: 200,
		ResponseData: []store.ResponseData{{Data: "default"}, {Data: "alternate"}},
	}
	require.NoError(t, f.store.CreateDescriptor(ctx, d))
	empty := &store.Descriptor{MethodTypeID: get.ID, URL: "/empty", Enabled: true, ResponseStatusCode: 200}
	require.NoError(t, f.store.CreateDescriptor(ctx, empty))

	rec := f.do(http.MethodGet, "/proxy/variants", "", nil)
	assert.Equal(t, "default", rec.Body.String())

	alt := strconv.FormatInt(d.ResponseData[1].ID, 10)
	rec = f.do(http.MethodGet, "/proxy/variants", "", http.Header{VariantHeader: {alt}})
	assert.Equal(t, "alternate", rec.Body.String())

	rec = f.do(http.MethodGet, "/proxy/empty", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "FIXTURE_CONFIGURATION_ERROR")
	assert.Equal(t, int64(0), f.hits.Load())
}

func TestConcurrentFirstSeenRecording(t *testing.T) {
	f := newFixture(t)
	f.toggles.SetSync(true)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := f.do(http.MethodPost, "/proxy/first-seen", `{"sku":"p1"}`, http.Header{"Content-Type": {"application/json"}})
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
	}
	wg.Wait()

	descriptors, err := f.store.ListDescriptors(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, descriptors)
	for _, d := range descriptors {
		assert.Len(t, d.RequestBodyFields, 1)
		assert.NotEmpty(t, d.ResponseHeaders)
		require.Len(t, d.ResponseData, 1)
		assert.True(t, d.ResponseData[0].IsDefault)
	}

	f.toggles.SetSync(false)
	first := f.do(http.MethodPost, "/proxy/first-seen", `{"sku":"p1"}`, http.Header{"Content-Type": {"application/json"}})
	second := f.do(http.MethodPost, "/proxy/first-seen", `{"sku":"p1"}`, http.Header{"Content-Type": {"application/json"}})
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, first.Header().Get("X-Upstream-Hit"), second.Header().Get("X-Upstream-Hit"))
}
