// Package proxy forwards unmatched requests to the remote environment and
// optionally records what comes back.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/objectedge/occ-tools-sub002/pkg/apperrors"
	"github.com/objectedge/occ-tools-sub002/pkg/httputil"
	"github.com/objectedge/occ-tools-sub002/pkg/matcher"
	"github.com/objectedge/occ-tools-sub002/pkg/store"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxRecordBytes = 10 * 1024 * 1024
)

// request headers never written to the store
var unrecordedHeaders = map[string]bool{
	"Authorization":  true,
	"Cookie":         true,
	"X-Mock-Variant": true,
	"X-Request-Id":   true,
}

// Recorder persists an observed interaction
type Recorder interface {
	RecordInteraction(ctx context.Context, env *store.Environment, in store.Interaction) (*store.Descriptor, error)
}

// Options configures a Coordinator
type Options struct {
	Timeout        time.Duration
	MaxRecordBytes int64
	SchemaPath     string // schema receiving recorded methods
	Filter         *Filter
	Transport      http.RoundTripper
}

// Coordinator forwards requests upstream
type Coordinator struct {
	client   *http.Client
	recorder Recorder
	opts     Options
}

func New(recorder Recorder, opts Options) *Coordinator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRecordBytes <= 0 {
		opts.MaxRecordBytes = DefaultMaxRecordBytes
	}
	return &Coordinator{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
			// Redirects are the caller's business
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		recorder: recorder,
		opts:     opts,
	}
}

// MaxRecordBytes is the largest request or response body that is recorded
func (c *Coordinator) MaxRecordBytes() int64 {
	return c.opts.MaxRecordBytes
}

// Forward sends req to the environment's remote base URL and streams the
// response back unchanged. The upstream request is bound to r's context, so
// a client disconnect aborts it. With record set, a successful response that
// fits the capture buffer and passes the filter is persisted afterwards.
func (c *Coordinator) Forward(w http.ResponseWriter, r *http.Request, env *store.Environment, req matcher.Request, record bool) {
	c.forward(w, r, env, req, bytes.NewReader(req.Body), int64(len(req.Body)), record)
}

// Stream forwards req with body as the upstream request body and never
// records. It serves requests whose body is too large to buffer; size is
// the body length or -1 when unknown.
func (c *Coordinator) Stream(w http.ResponseWriter, r *http.Request, env *store.Environment, req matcher.Request, body io.Reader, size int64) {
	c.forward(w, r, env, req, body, size, false)
}

func (c *Coordinator) forward(w http.ResponseWriter, r *http.Request, env *store.Environment, req matcher.Request, reqBody io.Reader, size int64, record bool) {
	start := time.Now()
	target, err := UpstreamURL(env.RemoteBaseURL, req.Path, req.RawQuery)
	if err != nil {
		httputil.RespondAppError(w, r, apperrors.NewUpstreamError(env.RemoteBaseURL, err))
		return
	}

	out, err := http.NewRequestWithContext(r.Context(), req.Method, target, reqBody)
	if err != nil {
		httputil.RespondAppError(w, r, apperrors.NewUpstreamError(target, err))
		return
	}
	out.ContentLength = size
	if size == 0 {
		out.Body = http.NoBody
	}
	httputil.CopyHeaders(out.Header, req.Header)
	httputil.RemoveHopByHop(out.Header)
	out.Header.Del("X-Mock-Variant")

	resp, err := c.client.Do(out)
	if err != nil {
		if r.Context().Err() != nil {
			slog.Info("client went away, upstream request aborted", "method", req.Method, "url", target)
			return
		}
		slog.Error("upstream request failed", "method", req.Method, "url", target, "error", err)
		httputil.RespondAppError(w, r, apperrors.NewUpstreamError(target, err))
		return
	}
	defer resp.Body.Close()

	header := resp.Header.Clone()
	httputil.RemoveHopByHop(header)
	httputil.CopyHeaders(w.Header(), header)
	w.WriteHeader(resp.StatusCode)

	if resp.StatusCode >= http.StatusBadRequest {
		slog.Warn("upstream returned error status", "method", req.Method, "url", target, "status", resp.StatusCode)
	}

	record = record && resp.StatusCode < http.StatusBadRequest && c.opts.Filter.ShouldRecord(req.Path)

	var capture *capBuffer
	body := io.Reader(resp.Body)
	if record {
		capture = &capBuffer{limit: c.opts.MaxRecordBytes}
		body = io.TeeReader(resp.Body, capture)
	}
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("failed to stream upstream response", "method", req.Method, "url", target, "error", err)
		return
	}

	slog.Debug("proxied request", "method", req.Method, "url", target, "status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if !record {
		return
	}
	if capture.overflow {
		slog.Info("response too large to record", "method", req.Method, "path", req.Path, "limit", c.opts.MaxRecordBytes)
		return
	}

	// The response is already delivered; the write must not die with the client
	ctx := context.WithoutCancel(r.Context())
	d, err := c.recorder.RecordInteraction(ctx, env, c.interaction(req, resp.StatusCode, header, capture.Bytes()))
	if err != nil {
		slog.Error("failed to record interaction", "method", req.Method, "path", req.Path, "error", err)
		return
	}
	slog.Info("recorded interaction", "method", req.Method, "path", req.Path, "descriptor", d.ID, "status", resp.StatusCode)
}

func (c *Coordinator) interaction(req matcher.Request, status int, respHeader http.Header, body []byte) store.Interaction {
	reqHeader := req.Header.Clone()
	httputil.RemoveHopByHop(reqHeader)
	for name := range reqHeader {
		if unrecordedHeaders[http.CanonicalHeaderKey(name)] {
			delete(reqHeader, name)
		}
	}
	return store.Interaction{
		SchemaPath:      c.opts.SchemaPath,
		Method:          req.Method,
		URL:             req.Path,
		Parameters:      matcher.QueryFields(req.Query),
		BodyFields:      matcher.BodyFields(req.Header.Get("Content-Type"), req.Body),
		RequestHeaders:  headerFields(reqHeader),
		StatusCode:      status,
		ResponseHeaders: headerFields(respHeader),
		Body:            string(body),
	}
}

func headerFields(h http.Header) []store.KeyValue {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var kvs []store.KeyValue
	for _, k := range keys {
		for _, v := range h[k] {
			kvs = append(kvs, store.KeyValue{Key: k, Value: v})
		}
	}
	return kvs
}

// UpstreamURL joins the remote base URL, the normalized path and the raw
// query string
func UpstreamURL(base, path, rawQuery string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid remote base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return "", fmt.Errorf("invalid remote base url %q", base)
	}
	target := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target, nil
}

// capBuffer keeps at most limit bytes and never fails a write, so the
// client copy is unaffected when the body is too large to record
type capBuffer struct {
	bytes.Buffer
	limit    int64
	overflow bool
}

func (b *capBuffer) Write(p []byte) (int, error) {
	if b.overflow {
		return len(p), nil
	}
	if int64(b.Len()+len(p)) > b.limit {
		b.overflow = true
		b.Reset()
		return len(p), nil
	}
	return b.Buffer.Write(p)
}
