// Package engine runs the virtualization pipeline for /proxy requests:
// match a stored descriptor and synthesize its response, or fall back to the
// remote environment.
package engine

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/objectedge/occ-tools-sub002/pkg/apperrors"
	"github.com/objectedge/occ-tools-sub002/pkg/httputil"
	"github.com/objectedge/occ-tools-sub002/pkg/matcher"
	"github.com/objectedge/occ-tools-sub002/pkg/proxy"
	"github.com/objectedge/occ-tools-sub002/pkg/store"
	"github.com/objectedge/occ-tools-sub002/pkg/synth"
	"github.com/objectedge/occ-tools-sub002/pkg/toggles"
)

// VariantHeader selects a response variant of the matched descriptor
const VariantHeader = "X-Mock-Variant"

// Prefix is stripped from incoming paths before matching and forwarding
const Prefix = "/proxy"

// Engine serves virtualized requests for one environment
type Engine struct {
	env         *store.Environment
	matcher     *matcher.Matcher
	coordinator *proxy.Coordinator
	toggles     *toggles.Registry
	maxBody     int64
}

// New creates an engine. Request bodies up to the coordinator's record limit
// are buffered for matching; larger ones are streamed upstream.
func New(env *store.Environment, m *matcher.Matcher, c *proxy.Coordinator, t *toggles.Registry) *Engine {
	return &Engine{env: env, matcher: m, coordinator: c, toggles: t, maxBody: c.MaxRecordBytes()}
}

// NormalizePath strips the /proxy prefix and guarantees a leading slash.
// p is the escaped path; it is otherwise passed through untouched.
func NormalizePath(p string) string {
	if p == Prefix || strings.HasPrefix(p, Prefix+"/") {
		p = strings.TrimPrefix(p, Prefix)
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := matcher.Request{
		Method:   r.Method,
		Path:     NormalizePath(r.URL.EscapedPath()),
		RawQuery: r.URL.RawQuery,
		Query:    r.URL.Query(),
		Header:   r.Header,
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, e.maxBody+1))
	if err != nil {
		httputil.RespondAppError(w, r, apperrors.NewValidationError("body", "failed to read request body"))
		return
	}
	if int64(len(body)) > e.maxBody {
		// Too large to match or record; pass it through as read
		slog.Debug("streaming oversized request upstream", "method", req.Method, "path", req.Path, "limit", e.maxBody)
		e.coordinator.Stream(w, r, e.env, req, io.MultiReader(bytes.NewReader(body), r.Body), r.ContentLength)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	req.Body = body
	forceProxy, sync := e.toggles.ForceProxy(), e.toggles.Sync()

	if !forceProxy && !sync {
		if e.serveLocal(w, r, req) {
			return
		}
	}

	slog.Debug("forwarding request", "method", req.Method, "path", req.Path,
		"proxyAllApis", forceProxy, "syncAllApis", sync)
	e.coordinator.Forward(w, r, e.env, req, sync)
}

// serveLocal answers from the store and reports whether it did. A miss or a
// store failure leaves the response untouched for the fallback.
func (e *Engine) serveLocal(w http.ResponseWriter, r *http.Request, req matcher.Request) bool {
	d, ok, err := e.matcher.Match(r.Context(), e.env, req)
	if err != nil {
		slog.Error("failed to match request", "method", req.Method, "path", req.Path, "error", err)
		return false
	}
	if !ok {
		return false
	}

	variant, err := synth.ParseVariant(r.Header.Get(VariantHeader))
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return true
	}
	resp, err := synth.Synthesize(d, variant)
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return true
	}
	if err := resp.Write(w); err != nil {
		slog.Warn("failed to write response", "descriptor", d.ID, "error", err)
	}
	slog.Debug("served descriptor", "method", req.Method, "path", req.Path, "descriptor", d.ID, "variant", variant.String())
	return true
}
