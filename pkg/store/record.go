package store

import (
	"context"
	"errors"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Interaction is one observed upstream exchange to be persisted
type Interaction struct {
	SchemaPath      string // schema receiving a new method when none fits
	Method          string
	URL             string
	Parameters      []KeyValue
	BodyFields      []KeyValue
	RequestHeaders  []KeyValue
	StatusCode      int
	ResponseHeaders []KeyValue
	Body            string
}

// RecordInteraction persists an observed exchange in one transaction. When a
// descriptor with the same verb, url, parameters and body fields already
// exists, its status, response headers and default variant are refreshed
// instead of creating a duplicate. Nothing is written if any step fails.
func (s *Store) RecordInteraction(ctx context.Context, env *Environment, in Interaction) (*Descriptor, error) {
	var recorded *Descriptor
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mt, err := methodTypeByName(tx, in.Method)
		if err != nil {
			return err
		}

		existing, err := findRecorded(tx, env.ID, mt.ID, in)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := refreshRecorded(tx, existing, in); err != nil {
				return err
			}
			recorded, err = getDescriptor(tx, existing.ID)
			return err
		}

		method, err := findMethod(tx, env.ID, mt.ID, in.URL)
		if err != nil {
			return err
		}
		if method == nil {
			method, err = createRecordedMethod(tx, env.ID, mt, in)
			if err != nil {
				return err
			}
		}

		d := &Descriptor{
			MethodID:           &method.ID,
			MethodTypeID:       mt.ID,
			URL:                in.URL,
			Enabled:            true,
			RequestStatusCode:  in.StatusCode,
			ResponseStatusCode: in.StatusCode,
			RequestHeaders:     toRows(in.RequestHeaders, func(kv KeyValue) RequestHeader { return RequestHeader{Key: kv.Key, Value: kv.Value} }),
			RequestBodyFields:  toRows(in.BodyFields, func(kv KeyValue) RequestBodyField { return RequestBodyField{Key: kv.Key, Value: kv.Value} }),
			RequestParameters:  toRows(in.Parameters, func(kv KeyValue) RequestParameter { return RequestParameter{Key: kv.Key, Value: kv.Value} }),
			ResponseHeaders:    toRows(in.ResponseHeaders, func(kv KeyValue) ResponseHeader { return ResponseHeader{Key: kv.Key, Value: kv.Value} }),
			ResponseData:       []ResponseData{{Data: in.Body, IsDefault: true}},
		}
		if err := createDescriptor(tx, d); err != nil {
			return err
		}
		recorded, err = getDescriptor(tx, d.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return recorded, nil
}

func toRows[S, T any](in []S, conv func(S) T) []T {
	rows := make([]T, 0, len(in))
	for _, v := range in {
		rows = append(rows, conv(v))
	}
	return rows
}

// findRecorded returns the earliest enabled descriptor with the same
// request shape as in, or nil
func findRecorded(tx *gorm.DB, envID, methodTypeID int64, in Interaction) (*Descriptor, error) {
	var candidates []Descriptor
	err := tx.Preload("RequestParameters").Preload("RequestBodyFields").
		Joins("LEFT JOIN methods ON methods.id = descriptors.method_id").
		Joins("LEFT JOIN schemas ON schemas.id = methods.schema_id").
		Where("descriptors.enabled = ? AND descriptors.url = ? AND descriptors.method_type_id = ?", true, in.URL, methodTypeID).
		Where("(descriptors.method_id IS NULL OR schemas.environment_id = ?)", envID).
		Order("descriptors.id").
		Find(&candidates).Error
	if err != nil {
		return nil, wrapErr("find recorded descriptor", err)
	}

	wantParams := kvSignature(in.Parameters)
	wantBody := kvSignature(in.BodyFields)
	for i := range candidates {
		c := &candidates[i]
		params := toRows(c.RequestParameters, func(p RequestParameter) KeyValue { return KeyValue{p.Key, p.Value} })
		body := toRows(c.RequestBodyFields, func(b RequestBodyField) KeyValue { return KeyValue{b.Key, b.Value} })
		if kvSignature(params) == wantParams && kvSignature(body) == wantBody {
			return c, nil
		}
	}
	return nil, nil
}

func kvSignature(kvs []KeyValue) string {
	parts := make([]string, 0, len(kvs))
	for _, kv := range kvs {
		parts = append(parts, kv.Key+"\x00"+kv.Value)
	}
	sort.Strings(parts)
	return strings.Join(parts, "\x01")
}

func refreshRecorded(tx *gorm.DB, d *Descriptor, in Interaction) error {
	err := tx.Model(&Descriptor{ID: d.ID}).Updates(map[string]any{
		"request_status_code":  in.StatusCode,
		"response_status_code": in.StatusCode,
	}).Error
	if err != nil {
		return wrapErr("refresh descriptor", err)
	}

	if err := tx.Where("descriptor_id = ?", d.ID).Delete(&ResponseHeader{}).Error; err != nil {
		return wrapErr("refresh response headers", err)
	}
	headers := toRows(in.ResponseHeaders, func(kv KeyValue) ResponseHeader {
		return ResponseHeader{DescriptorID: d.ID, Key: kv.Key, Value: kv.Value}
	})
	if len(headers) > 0 {
		if err := tx.Create(&headers).Error; err != nil {
			return wrapErr("refresh response headers", err)
		}
	}

	var current ResponseData
	err = tx.Where("descriptor_id = ? AND is_default = ?", d.ID, true).First(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return wrapErr("refresh response data", tx.Create(&ResponseData{DescriptorID: d.ID, Data: in.Body, IsDefault: true}).Error)
	}
	if err != nil {
		return wrapErr("refresh response data", err)
	}
	return wrapErr("refresh response data",
		tx.Model(&ResponseData{ID: current.ID}).Update("data", in.Body).Error)
}

func createRecordedMethod(tx *gorm.DB, envID int64, mt *MethodType, in Interaction) (*Method, error) {
	schemaPath := in.SchemaPath
	if schemaPath == "" {
		schemaPath = "recorded"
	}
	schema, err := findOrCreateSchema(tx, envID, schemaPath)
	if err != nil {
		return nil, err
	}

	operationID := mt.Name + " " + in.URL
	var method Method
	err = tx.Where("schema_id = ? AND operation_id = ?", schema.ID, operationID).First(&method).Error
	if err == nil {
		return &method, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, wrapErr("get method", err)
	}

	method = Method{
		SchemaID:     schema.ID,
		MethodTypeID: mt.ID,
		OperationID:  operationID,
		Path:         in.URL,
		Summary:      "Recorded " + operationID,
		Produces:     headerValue(in.ResponseHeaders, "Content-Type"),
	}
	if err := tx.Omit(clause.Associations).Create(&method).Error; err != nil {
		return nil, wrapErr("create method", err)
	}
	return &method, nil
}

func headerValue(kvs []KeyValue, name string) string {
	for _, kv := range kvs {
		if strings.EqualFold(kv.Key, name) {
			return kv.Value
		}
	}
	return ""
}
