package controller

import (
	"log/slog"
	"net/http"

	"github.com/objectedge/occ-tools-sub002/pkg/httputil"
	"github.com/objectedge/occ-tools-sub002/pkg/query"
)

type listQuery struct {
	Filter string `schema:"filter"`
	Sort   string `schema:"sort"`
	Range  string `schema:"range"`
}

// listParams parses filter, sort and range. A malformed parameter is logged
// and dropped; the rest still apply.
func (c *Controller) listParams(r *http.Request) query.Params {
	var q listQuery
	if err := c.decoder.Decode(&q, r.URL.Query()); err != nil {
		slog.Warn("failed to decode list query", "path", r.URL.Path, "error", err)
	}
	p, errs := query.Parse(q.Filter, q.Sort, q.Range)
	for _, err := range errs {
		slog.Warn("ignoring malformed query parameter", "path", r.URL.Path, "error", err)
	}
	return p
}

func writeList[T any](c *Controller, w http.ResponseWriter, r *http.Request, resource string, items []T) {
	res := query.Apply(items, c.listParams(r))
	w.Header().Set("Content-Range", res.ContentRange(resource))
	w.Header().Set("Access-Control-Expose-Headers", "Content-Range")
	httputil.WriteJSON(w, http.StatusOK, res.Items)
}

// HandleListEnvironments lists all environments
func (c *Controller) HandleListEnvironments(w http.ResponseWriter, r *http.Request) {
	envs, err := c.store.ListEnvironments(r.Context())
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	writeList(c, w, r, "environments", envs)
}

// HandleListSchemas lists all schemas
func (c *Controller) HandleListSchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := c.store.ListSchemas(r.Context())
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	writeList(c, w, r, "schemas", schemas)
}

// HandleListMethodTypes lists the HTTP verbs
func (c *Controller) HandleListMethodTypes(w http.ResponseWriter, r *http.Request) {
	types, err := c.store.ListMethodTypes(r.Context())
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	writeList(c, w, r, "method-types", types)
}

// HandleListMethods lists all methods
func (c *Controller) HandleListMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := c.store.ListMethods(r.Context())
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	writeList(c, w, r, "methods", methods)
}

// HandleListAllowedParameters lists all parameter contracts
func (c *Controller) HandleListAllowedParameters(w http.ResponseWriter, r *http.Request) {
	params, err := c.store.ListAllowedParameters(r.Context())
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	writeList(c, w, r, "allowed-parameters", params)
}

// HandleListDescriptors lists all descriptors with their children
func (c *Controller) HandleListDescriptors(w http.ResponseWriter, r *http.Request) {
	descriptors, err := c.store.ListDescriptors(r.Context())
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	writeList(c, w, r, "descriptors", descriptors)
}
