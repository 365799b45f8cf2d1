package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogImport is a schema document flattened into methods and parameters
type CatalogImport struct {
	Path    string
	Methods []ImportedMethod
	Global  []AllowedParameter // parameters shared by every method
}

// ImportedMethod is one operation of a CatalogImport
type ImportedMethod struct {
	Verb       string
	Method     Method
	Parameters []AllowedParameter
}

// ImportCatalog writes a schema with its methods and parameters in one
// transaction. Methods are keyed by operation id, so importing the same
// document again updates in place and replaces the parameter contracts.
func (s *Store) ImportCatalog(ctx context.Context, envID int64, imp CatalogImport) (*Schema, error) {
	var schema *Schema
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		schema, err = findOrCreateSchema(tx, envID, imp.Path)
		if err != nil {
			return err
		}

		if err := tx.Where("schema_id = ? AND method_id IS NULL", schema.ID).Delete(&AllowedParameter{}).Error; err != nil {
			return wrapErr("replace global parameters", err)
		}
		if err := createParameters(tx, schema.ID, nil, imp.Global); err != nil {
			return err
		}

		for _, im := range imp.Methods {
			mt, err := methodTypeByName(tx, im.Verb)
			if err != nil {
				return err
			}
			m := im.Method
			m.SchemaID = schema.ID
			m.MethodTypeID = mt.ID

			var existing Method
			err = tx.Where("schema_id = ? AND operation_id = ?", schema.ID, m.OperationID).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				m.ID = 0
				if err := tx.Omit(clause.Associations).Create(&m).Error; err != nil {
					return wrapErr("create method", err)
				}
			case err != nil:
				return wrapErr("get method", err)
			default:
				m.ID = existing.ID
				err := tx.Model(&Method{ID: existing.ID}).
					Select("method_type_id", "path", "summary", "description", "produces").
					Omit(clause.Associations).
					Updates(&m).Error
				if err != nil {
					return wrapErr("update method", err)
				}
				if err := tx.Where("method_id = ?", m.ID).Delete(&AllowedParameter{}).Error; err != nil {
					return wrapErr("replace method parameters", err)
				}
			}

			if err := createParameters(tx, schema.ID, &m.ID, im.Parameters); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return schema, nil
}

func createParameters(tx *gorm.DB, schemaID int64, methodID *int64, params []AllowedParameter) error {
	if len(params) == 0 {
		return nil
	}
	rows := make([]AllowedParameter, len(params))
	for i, p := range params {
		p.ID = 0
		p.SchemaID = schemaID
		p.MethodID = methodID
		rows[i] = p
	}
	return wrapErr("create allowed parameters", tx.Create(&rows).Error)
}
