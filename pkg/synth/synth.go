// Package synth turns a matched descriptor into an HTTP response.
package synth

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/objectedge/occ-tools-sub002/pkg/apperrors"
	"github.com/objectedge/occ-tools-sub002/pkg/store"
)

// Variant selects which response body of a descriptor is emitted
type Variant struct {
	id int64 // 0 selects the default variant
}

// DefaultVariant selects the variant flagged as default
var DefaultVariant = Variant{}

// VariantID selects a variant by its ResponseData id
func VariantID(id int64) Variant { return Variant{id: id} }

// IsDefault reports whether v selects the default variant
func (v Variant) IsDefault() bool { return v.id == 0 }

func (v Variant) String() string {
	if v.IsDefault() {
		return "default"
	}
	return strconv.FormatInt(v.id, 10)
}

// ParseVariant parses "", "default" or a numeric ResponseData id
func ParseVariant(s string) (Variant, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "default") {
		return DefaultVariant, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return DefaultVariant, apperrors.NewValidationError("variant", "must be \"default\" or a positive response data id")
	}
	return VariantID(id), nil
}

// Response is a synthesized response ready to be written
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Synthesize builds the response of d for the selected variant. It does not
// modify d. A descriptor without variants is a fixture configuration error.
func Synthesize(d *store.Descriptor, v Variant) (*Response, error) {
	if len(d.ResponseData) == 0 {
		return nil, apperrors.NewFixtureConfigError(d.ID, "descriptor has no response data")
	}

	var data *store.ResponseData
	if v.IsDefault() {
		data = d.DefaultResponse()
		if data == nil {
			return nil, apperrors.NewFixtureConfigError(d.ID, "descriptor has no default response data")
		}
	} else {
		for i := range d.ResponseData {
			if d.ResponseData[i].ID == v.id {
				data = &d.ResponseData[i]
				break
			}
		}
		if data == nil {
			return nil, apperrors.NewNotFoundError("response data", v.String())
		}
	}

	header := http.Header{}
	for _, h := range d.ResponseHeaders {
		header.Add(h.Key, h.Value)
	}

	status := d.ResponseStatusCode
	if status == 0 {
		status = http.StatusOK
	}

	return &Response{StatusCode: status, Header: header, Body: []byte(data.Data)}, nil
}

// Write emits the response. Content-Length is recomputed from the body.
func (r *Response) Write(w http.ResponseWriter) error {
	for k, values := range r.Header {
		if strings.EqualFold(k, "Content-Length") {
			continue
		}
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(r.Body)))
	w.WriteHeader(r.StatusCode)
	_, err := w.Write(r.Body)
	return err
}
