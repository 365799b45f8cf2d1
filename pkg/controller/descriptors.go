package controller

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/objectedge/occ-tools-sub002/pkg/apperrors"
	"github.com/objectedge/occ-tools-sub002/pkg/httputil"
	"github.com/objectedge/occ-tools-sub002/pkg/store"
	"github.com/objectedge/occ-tools-sub002/pkg/synth"

	"github.com/gorilla/mux"
)

type previewQuery struct {
	Variant string `schema:"variant"`
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}

// decodeDescriptor reads a descriptor body. The verb may be given by
// methodTypeId or by methodType.name.
func (c *Controller) decodeDescriptor(r *http.Request) (*store.Descriptor, error) {
	var d store.Descriptor
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		return nil, apperrors.NewValidationError("body", err.Error())
	}
	if d.MethodTypeID == 0 {
		if d.MethodType.Name == "" {
			return nil, apperrors.NewValidationError("methodTypeId", "required")
		}
		mt, err := c.store.MethodTypeByName(r.Context(), d.MethodType.Name)
		if err != nil {
			return nil, err
		}
		d.MethodTypeID = mt.ID
	}
	return &d, nil
}

// HandleCreateDescriptor creates a descriptor with its children
func (c *Controller) HandleCreateDescriptor(w http.ResponseWriter, r *http.Request) {
	d, err := c.decodeDescriptor(r)
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	if err := c.store.CreateDescriptor(r.Context(), d); err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	created, err := c.store.GetDescriptor(r.Context(), d.ID)
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	slog.Info("created descriptor", "descriptor", created.ID, "url", created.URL)
	httputil.WriteJSON(w, http.StatusCreated, created)
}

// HandleGetDescriptor gets a descriptor by ID
func (c *Controller) HandleGetDescriptor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	d, err := c.store.GetDescriptor(r.Context(), id)
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

// HandleUpdateDescriptor replaces a descriptor. Omitting responseData keeps
// the existing variants.
func (c *Controller) HandleUpdateDescriptor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	d, err := c.decodeDescriptor(r)
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	d.ID = id
	if err := c.store.UpdateDescriptor(r.Context(), d); err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	updated, err := c.store.GetDescriptor(r.Context(), id)
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

// HandleDeleteDescriptor deletes a descriptor and its children
func (c *Controller) HandleDeleteDescriptor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	if err := c.store.DeleteDescriptor(r.Context(), id); err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	slog.Info("deleted descriptor", "descriptor", id)
	w.WriteHeader(http.StatusNoContent)
}

// HandlePreviewDescriptor renders the response a descriptor would produce,
// optionally for a non-default variant
func (c *Controller) HandlePreviewDescriptor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	var q previewQuery
	if err := c.decoder.Decode(&q, r.URL.Query()); err != nil {
		httputil.RespondAppError(w, r, apperrors.NewValidationError("query", err.Error()))
		return
	}
	variant, err := synth.ParseVariant(q.Variant)
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}

	d, err := c.store.GetDescriptor(r.Context(), id)
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	resp, err := synth.Synthesize(d, variant)
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	resp.Write(w)
}

// HandleListResponseData lists the variants of a descriptor
func (c *Controller) HandleListResponseData(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	data, err := c.store.ListResponseData(r.Context(), id)
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	writeList(c, w, r, "response-data", data)
}

// HandleAddResponseData adds a variant to a descriptor
func (c *Controller) HandleAddResponseData(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	var rd store.ResponseData
	if err := json.NewDecoder(r.Body).Decode(&rd); err != nil {
		httputil.RespondAppError(w, r, apperrors.NewValidationError("body", err.Error()))
		return
	}
	if _, err := c.store.GetDescriptor(r.Context(), id); err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	rd.DescriptorID = id
	if err := c.store.AddResponseData(r.Context(), &rd); err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rd)
}

// HandleSetDefaultResponseData makes a variant the default of its descriptor
func (c *Controller) HandleSetDefaultResponseData(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	if err := c.store.SetDefaultResponseData(r.Context(), id); err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteResponseData deletes a variant
func (c *Controller) HandleDeleteResponseData(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	if err := c.store.DeleteResponseData(r.Context(), id); err != nil {
		httputil.RespondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
