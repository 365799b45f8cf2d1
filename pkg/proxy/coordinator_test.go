package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/objectedge/occ-tools-sub002/pkg/matcher"
	"github.com/objectedge/occ-tools-sub002/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	mu       sync.Mutex
	recorded []store.Interaction
	err      error
}

func (f *fakeRecorder) RecordInteraction(_ context.Context, _ *store.Environment, in store.Interaction) (*store.Descriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.recorded = append(f.recorded, in)
	return &store.Descriptor{ID: int64(len(f.recorded))}, nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recorded)
}

func forward(c *Coordinator, env *store.Environment, method, target, body string, header http.Header, record bool) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		r.Header[k] = v
	}
	req := matcher.Request{
		Method:   method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Query:    r.URL.Query(),
		Header:   r.Header,
		Body:     []byte(body),
	}
	rec := httptest.NewRecorder()
	c.Forward(rec, r, env, req, record)
	return rec
}

func TestForwardPassesThroughVerbatim(t *testing.T) {
	var gotMethod, gotPath, gotQuery, gotBody, gotHeader string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotQuery = r.Method, r.URL.Path, r.URL.RawQuery
		gotHeader = r.Header.Get("X-Custom")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("X-Upstream", "yes")
		w.Header().Add("Set-Cookie", "a=1")
		w.Header().Add("Set-Cookie", "b=2")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	recorder := &fakeRecorder{}
	c := New(recorder, Options{})
	env := &store.Environment{ID: 1, RemoteBaseURL: upstream.URL + "/"}

	rec := forward(c, env, http.MethodPost, "/ccstoreui/v1/cart?b=2&a=1", `{"sku":"p1"}`,
		http.Header{"X-Custom": {"value"}, "Content-Type": {"application/json"}}, false)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "yes", rec.Header().Get("X-Upstream"))
	assert.Equal(t, []string{"a=1", "b=2"}, rec.Header().Values("Set-Cookie"))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/ccstoreui/v1/cart", gotPath)
	assert.Equal(t, "b=2&a=1", gotQuery)
	assert.Equal(t, `{"sku":"p1"}`, gotBody)
	assert.Equal(t, "value", gotHeader)

	assert.Equal(t, 0, recorder.count(), "nothing is recorded unless asked")
}

func TestForwardRecordsSuccessfulResponse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[]}`))
	}))
	defer upstream.Close()

	recorder := &fakeRecorder{}
	c := New(recorder, Options{SchemaPath: "recorded"})
	env := &store.Environment{ID: 1, RemoteBaseURL: upstream.URL}

	rec := forward(c, env, http.MethodGet, "/products?limit=5", "",
		http.Header{"Authorization": {"Bearer secret"}, "Accept": {"application/json"}}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, recorder.count())

	in := recorder.recorded[0]
	assert.Equal(t, "recorded", in.SchemaPath)
	assert.Equal(t, "GET", in.Method)
	assert.Equal(t, "/products", in.URL)
	assert.Equal(t, []store.KeyValue{{Key: "limit", Value: "5"}}, in.Parameters)
	assert.Equal(t, 200, in.StatusCode)
	assert.Equal(t, `{"items":[]}`, in.Body)
	assert.Contains(t, in.ResponseHeaders, store.KeyValue{Key: "Content-Type", Value: "application/json"})
	assert.Contains(t, in.RequestHeaders, store.KeyValue{Key: "Accept", Value: "application/json"})
	for _, h := range in.RequestHeaders {
		assert.NotEqual(t, "Authorization", h.Key)
	}
}

func TestForwardDoesNotRecordErrors(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream broke"))
	}))
	defer upstream.Close()

	recorder := &fakeRecorder{}
	c := New(recorder, Options{})
	env := &store.Environment{ID: 1, RemoteBaseURL: upstream.URL}

	rec := forward(c, env, http.MethodGet, "/broken", "", nil, true)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "upstream broke", rec.Body.String())
	assert.Equal(t, 0, recorder.count())
}

func TestForwardUnreachableUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	base := upstream.URL
	upstream.Close()

	recorder := &fakeRecorder{}
	c := New(recorder, Options{Timeout: time.Second})
	env := &store.Environment{ID: 1, RemoteBaseURL: base}

	rec := forward(c, env, http.MethodGet, "/anything", "", nil, true)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "UPSTREAM_UNAVAILABLE")
	assert.Equal(t, 0, recorder.count())
}

func TestForwardSkipsFilteredAndOversized(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer upstream.Close()
	env := &store.Environment{ID: 1, RemoteBaseURL: upstream.URL}

	recorder := &fakeRecorder{}
	c := New(recorder, Options{Filter: &Filter{Exclude: []string{"/health/**"}}})
	rec := forward(c, env, http.MethodGet, "/health/live", "", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, recorder.count())

	c = New(recorder, Options{MaxRecordBytes: 16})
	rec = forward(c, env, http.MethodGet, "/big", "", nil, true)
	assert.Equal(t, 64, rec.Body.Len(), "client still gets the full body")
	assert.Equal(t, 0, recorder.count())
}

func TestForwardRecordFailureStillServesClient(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fine"))
	}))
	defer upstream.Close()

	c := New(&fakeRecorder{err: errors.New("disk full")}, Options{})
	rec := forward(c, &store.Environment{RemoteBaseURL: upstream.URL}, http.MethodGet, "/x", "", nil, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fine", rec.Body.String())
}

func TestForwardClientCancelAbortsUpstream(t *testing.T) {
	aborted := make(chan struct{})
	started := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
		close(aborted)
	}))
	defer upstream.Close()

	recorder := &fakeRecorder{}
	c := New(recorder, Options{})
	env := &store.Environment{RemoteBaseURL: upstream.URL}

	ctx, cancel := context.WithCancel(context.Background())
	r := httptest.NewRequest(http.MethodGet, "/slow", nil).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Forward(httptest.NewRecorder(), r, env, matcher.Request{Method: http.MethodGet, Path: "/slow", Header: r.Header}, true)
	}()

	<-started
	cancel()

	select {
	case <-aborted:
	case <-time.After(5 * time.Second):
		t.Fatal("Expected upstream request to be aborted")
	}
	<-done
	assert.Equal(t, 0, recorder.count())
}

func TestUpstreamURL(t *testing.T) {
	got, err := UpstreamURL("https://shop.example.com/", "/ccstoreui/v1/products", "q=a%20b")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/ccstoreui/v1/products?q=a%20b", got)

	_, err = UpstreamURL("not a url", "/x", "")
	assert.Error(t, err)
	_, err = UpstreamURL("ftp://host", "/x", "")
	assert.Error(t, err)

	if _, err := url.Parse(got); err != nil {
		t.Errorf("Expected a valid url, got %v", err)
	}
}

func TestFilter(t *testing.T) {
	f := &Filter{Include: []string{"/ccstoreui/**"}, Exclude: []string{"/ccstoreui/v1/login*"}}

	assert.True(t, f.ShouldRecord("/ccstoreui/v1/products"))
	assert.False(t, f.ShouldRecord("/ccstoreui/v1/login"))
	assert.False(t, f.ShouldRecord("/ccadmin/v1/products"))

	var none *Filter
	assert.True(t, none.ShouldRecord("/anything"))

	assert.NoError(t, f.Validate())
	assert.Error(t, (&Filter{Include: []string{"/[unclosed"}}).Validate())
}
