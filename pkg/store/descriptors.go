package store

import (
	"context"
	"errors"
	"strconv"

	"github.com/objectedge/occ-tools-sub002/pkg/apperrors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// preloadDescriptor loads every child collection, each ordered by id
func preloadDescriptor(tx *gorm.DB) *gorm.DB {
	byID := func(db *gorm.DB) *gorm.DB { return db.Order("id") }
	return tx.Preload("MethodType").
		Preload("RequestHeaders", byID).
		Preload("RequestBodyFields", byID).
		Preload("RequestParameters", byID).
		Preload("ResponseHeaders", byID).
		Preload("ResponseData", byID)
}

// normalizeDefaults makes exactly one variant default when there is any:
// the first flagged one, or the first one when none is flagged
func normalizeDefaults(data []ResponseData) {
	if len(data) == 0 {
		return
	}
	found := false
	for i := range data {
		if data[i].IsDefault && !found {
			found = true
			continue
		}
		data[i].IsDefault = false
	}
	if !found {
		data[0].IsDefault = true
	}
}

// createChildren inserts the child rows of d, which must already have an ID
func createChildren(tx *gorm.DB, d *Descriptor) error {
	for i := range d.RequestHeaders {
		d.RequestHeaders[i].ID = 0
		d.RequestHeaders[i].DescriptorID = d.ID
	}
	for i := range d.RequestBodyFields {
		d.RequestBodyFields[i].ID = 0
		d.RequestBodyFields[i].DescriptorID = d.ID
	}
	for i := range d.RequestParameters {
		d.RequestParameters[i].ID = 0
		d.RequestParameters[i].DescriptorID = d.ID
	}
	for i := range d.ResponseHeaders {
		d.ResponseHeaders[i].ID = 0
		d.ResponseHeaders[i].DescriptorID = d.ID
	}

	if len(d.RequestHeaders) > 0 {
		if err := tx.Create(&d.RequestHeaders).Error; err != nil {
			return wrapErr("create request headers", err)
		}
	}
	if len(d.RequestBodyFields) > 0 {
		if err := tx.Create(&d.RequestBodyFields).Error; err != nil {
			return wrapErr("create request body fields", err)
		}
	}
	if len(d.RequestParameters) > 0 {
		if err := tx.Create(&d.RequestParameters).Error; err != nil {
			return wrapErr("create request parameters", err)
		}
	}
	if len(d.ResponseHeaders) > 0 {
		if err := tx.Create(&d.ResponseHeaders).Error; err != nil {
			return wrapErr("create response headers", err)
		}
	}
	return createResponseData(tx, d)
}

func createResponseData(tx *gorm.DB, d *Descriptor) error {
	if len(d.ResponseData) == 0 {
		return nil
	}
	normalizeDefaults(d.ResponseData)
	for i := range d.ResponseData {
		d.ResponseData[i].ID = 0
		d.ResponseData[i].DescriptorID = d.ID
	}
	if err := tx.Create(&d.ResponseData).Error; err != nil {
		return wrapErr("create response data", err)
	}
	return nil
}

// CreateDescriptor creates a descriptor and all its children in one transaction
func (s *Store) CreateDescriptor(ctx context.Context, d *Descriptor) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return createDescriptor(tx, d)
	})
}

func createDescriptor(tx *gorm.DB, d *Descriptor) error {
	if d.URL == "" {
		return apperrors.NewValidationError("url", "required")
	}
	d.ID = 0
	if err := tx.Omit(clause.Associations).Create(d).Error; err != nil {
		return wrapErr("create descriptor", err)
	}
	return createChildren(tx, d)
}

// GetDescriptor retrieves a descriptor with all its children
func (s *Store) GetDescriptor(ctx context.Context, id int64) (*Descriptor, error) {
	return getDescriptor(s.db.WithContext(ctx), id)
}

func getDescriptor(tx *gorm.DB, id int64) (*Descriptor, error) {
	var d Descriptor
	err := preloadDescriptor(tx).First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("descriptor", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, wrapErr("get descriptor", err)
	}
	return &d, nil
}

// ListDescriptors retrieves all descriptors with their children
func (s *Store) ListDescriptors(ctx context.Context) ([]Descriptor, error) {
	descriptors := []Descriptor{}
	if err := preloadDescriptor(s.db.WithContext(ctx)).Order("id").Find(&descriptors).Error; err != nil {
		return nil, wrapErr("list descriptors", err)
	}
	return descriptors, nil
}

// CandidateDescriptors returns the enabled descriptors for a verb and path
// that belong to env or to no method at all, in ascending id order
func (s *Store) CandidateDescriptors(ctx context.Context, envID, methodTypeID int64, url string) ([]Descriptor, error) {
	descriptors := []Descriptor{}
	err := preloadDescriptor(s.db.WithContext(ctx)).
		Joins("LEFT JOIN methods ON methods.id = descriptors.method_id").
		Joins("LEFT JOIN schemas ON schemas.id = methods.schema_id").
		Where("descriptors.enabled = ? AND descriptors.url = ? AND descriptors.method_type_id = ?", true, url, methodTypeID).
		Where("(descriptors.method_id IS NULL OR schemas.environment_id = ?)", envID).
		Order("descriptors.id").
		Find(&descriptors).Error
	if err != nil {
		return nil, wrapErr("find candidate descriptors", err)
	}
	return descriptors, nil
}

// UpdateDescriptor replaces the scalar fields and the header, parameter and
// body rows of a descriptor. Response variants are replaced only when
// d.ResponseData is non-nil.
func (s *Store) UpdateDescriptor(ctx context.Context, d *Descriptor) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getDescriptor(tx, d.ID); err != nil {
			return err
		}
		err := tx.Model(&Descriptor{ID: d.ID}).
			Select("method_id", "method_type_id", "url", "enabled", "request_status_code", "response_status_code", "updated_at").
			Omit(clause.Associations).
			Updates(d).Error
		if err != nil {
			return wrapErr("update descriptor", err)
		}

		children := []any{&RequestHeader{}, &RequestBodyField{}, &RequestParameter{}, &ResponseHeader{}}
		if d.ResponseData != nil {
			children = append(children, &ResponseData{})
		}
		for _, model := range children {
			if err := tx.Where("descriptor_id = ?", d.ID).Delete(model).Error; err != nil {
				return wrapErr("replace descriptor children", err)
			}
		}

		return createChildren(tx, d)
	})
}

// DeleteDescriptor deletes a descriptor; its child rows go with it through
// ON DELETE CASCADE in the same statement
func (s *Store) DeleteDescriptor(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&Descriptor{}, id)
	if result.Error != nil {
		return wrapErr("delete descriptor", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError("descriptor", strconv.FormatInt(id, 10))
	}
	return nil
}

// ListResponseData retrieves the variants of a descriptor
func (s *Store) ListResponseData(ctx context.Context, descriptorID int64) ([]ResponseData, error) {
	if _, err := s.GetDescriptor(ctx, descriptorID); err != nil {
		return nil, err
	}
	data := []ResponseData{}
	if err := s.db.WithContext(ctx).Where("descriptor_id = ?", descriptorID).Order("id").Find(&data).Error; err != nil {
		return nil, wrapErr("list response data", err)
	}
	return data, nil
}

// AddResponseData adds a variant. The first variant of a descriptor, or one
// flagged IsDefault, becomes the default.
func (s *Store) AddResponseData(ctx context.Context, rd *ResponseData) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&ResponseData{}).Where("descriptor_id = ?", rd.DescriptorID).Count(&count).Error; err != nil {
			return wrapErr("count response data", err)
		}
		if count == 0 {
			rd.IsDefault = true
		}
		if rd.IsDefault {
			if err := clearDefault(tx, rd.DescriptorID); err != nil {
				return err
			}
		}
		rd.ID = 0
		return wrapErr("create response data", tx.Create(rd).Error)
	})
}

func clearDefault(tx *gorm.DB, descriptorID int64) error {
	err := tx.Model(&ResponseData{}).
		Where("descriptor_id = ? AND is_default = ?", descriptorID, true).
		Update("is_default", false).Error
	return wrapErr("clear default response data", err)
}

// SetDefaultResponseData makes the variant the default of its descriptor
func (s *Store) SetDefaultResponseData(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rd ResponseData
		err := tx.First(&rd, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFoundError("response data", strconv.FormatInt(id, 10))
		}
		if err != nil {
			return wrapErr("get response data", err)
		}
		if err := clearDefault(tx, rd.DescriptorID); err != nil {
			return err
		}
		return wrapErr("set default response data",
			tx.Model(&ResponseData{ID: id}).Update("is_default", true).Error)
	})
}

// DeleteResponseData deletes a variant. Deleting the default promotes the
// earliest remaining variant.
func (s *Store) DeleteResponseData(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rd ResponseData
		err := tx.First(&rd, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFoundError("response data", strconv.FormatInt(id, 10))
		}
		if err != nil {
			return wrapErr("get response data", err)
		}
		if err := tx.Delete(&ResponseData{}, id).Error; err != nil {
			return wrapErr("delete response data", err)
		}
		if !rd.IsDefault {
			return nil
		}

		var next ResponseData
		err = tx.Where("descriptor_id = ?", rd.DescriptorID).Order("id").First(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return wrapErr("get response data", err)
		}
		return wrapErr("promote default response data",
			tx.Model(&ResponseData{ID: next.ID}).Update("is_default", true).Error)
	})
}
