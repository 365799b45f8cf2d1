// Package matcher resolves an incoming request to a stored descriptor.
package matcher

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"sort"

	"github.com/objectedge/occ-tools-sub002/pkg/apperrors"
	"github.com/objectedge/occ-tools-sub002/pkg/store"

	"github.com/ohler55/ojg/oj"
)

// Request is the part of an HTTP request the matcher looks at
type Request struct {
	Method   string
	Path     string // normalized, without query string
	RawQuery string // query string as received, forwarded verbatim
	Query    url.Values
	Header   http.Header
	Body     []byte
}

// DescriptorSource provides the candidates for a verb and path
type DescriptorSource interface {
	MethodTypeByName(ctx context.Context, name string) (*store.MethodType, error)
	CandidateDescriptors(ctx context.Context, envID, methodTypeID int64, url string) ([]store.Descriptor, error)
}

// Matcher selects the best descriptor for a request
type Matcher struct {
	source DescriptorSource
}

func New(source DescriptorSource) *Matcher {
	return &Matcher{source: source}
}

// Match returns the best descriptor for req within env. No match is reported
// as (nil, false, nil); only store failures are errors.
func (m *Matcher) Match(ctx context.Context, env *store.Environment, req Request) (*store.Descriptor, bool, error) {
	mt, err := m.source.MethodTypeByName(ctx, req.Method)
	if apperrors.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	candidates, err := m.source.CandidateDescriptors(ctx, env.ID, mt.ID, req.Path)
	if err != nil {
		return nil, false, err
	}
	switch len(candidates) {
	case 0:
		return nil, false, nil
	case 1:
		return &candidates[0], true, nil
	}

	return Best(candidates, req), true, nil
}

// Best returns the highest scoring candidate; ties go to the lowest id
func Best(candidates []store.Descriptor, req Request) *store.Descriptor {
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	params := indexValues(QueryFields(req.Query))
	body := indexValues(BodyFields(req.Header.Get("Content-Type"), req.Body))

	best, bestScore := 0, -1
	for i := range candidates {
		if s := score(&candidates[i], params, body); s > bestScore {
			best, bestScore = i, s
		}
	}
	slog.Debug("scored candidates", "path", req.Path, "candidates", len(candidates),
		"descriptor", candidates[best].ID, "score", bestScore)
	return &candidates[best]
}

type fieldIndex map[string]map[string]bool

func indexValues(kvs []store.KeyValue) fieldIndex {
	idx := fieldIndex{}
	for _, kv := range kvs {
		if idx[kv.Key] == nil {
			idx[kv.Key] = map[string]bool{}
		}
		idx[kv.Key][kv.Value] = true
	}
	return idx
}

// score counts the stored parameters and body fields of d present with an
// equal value in the request
func score(d *store.Descriptor, params, body fieldIndex) int {
	n := 0
	for _, p := range d.RequestParameters {
		if params[p.Key][p.Value] {
			n++
		}
	}
	for _, f := range d.RequestBodyFields {
		if body[f.Key][f.Value] {
			n++
		}
	}
	return n
}

// QueryFields flattens query values into key/value pairs in key order
func QueryFields(q url.Values) []store.KeyValue {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var kvs []store.KeyValue
	for _, k := range keys {
		for _, v := range q[k] {
			kvs = append(kvs, store.KeyValue{Key: k, Value: v})
		}
	}
	return kvs
}

var sorted = func() oj.Options {
	opts := oj.DefaultOptions
	opts.Sort = true
	return opts
}()

// BodyFields extracts the top-level fields of a JSON object or form body.
// Non-string JSON values are kept in their JSON form. Other bodies have no
// fields.
func BodyFields(contentType string, body []byte) []store.KeyValue {
	if len(body) == 0 {
		return nil
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/x-www-form-urlencoded" {
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return nil
		}
		return QueryFields(form)
	}

	doc, err := oj.Parse(body)
	if err != nil {
		return nil
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kvs := make([]store.KeyValue, 0, len(keys))
	for _, k := range keys {
		value, ok := obj[k].(string)
		if !ok {
			value = oj.JSON(obj[k], &sorted)
		}
		kvs = append(kvs, store.KeyValue{Key: k, Value: value})
	}
	return kvs
}
