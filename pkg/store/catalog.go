package store

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/objectedge/occ-tools-sub002/pkg/apperrors"

	"github.com/bmatcuk/doublestar/v4"
	"gorm.io/gorm"
)

// UpsertEnvironment creates the environment or refreshes its base URLs by name
func (s *Store) UpsertEnvironment(ctx context.Context, env *Environment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Environment
		err := tx.Where("name = ?", env.Name).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return wrapErr("create environment", tx.Create(env).Error)
		}
		if err != nil {
			return wrapErr("get environment", err)
		}
		existing.RemoteBaseURL = env.RemoteBaseURL
		existing.LocalBaseURL = env.LocalBaseURL
		if err := tx.Save(&existing).Error; err != nil {
			return wrapErr("update environment", err)
		}
		*env = existing
		return nil
	})
}

// GetEnvironment retrieves an environment by name
func (s *Store) GetEnvironment(ctx context.Context, name string) (*Environment, error) {
	var env Environment
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&env).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("environment", name)
	}
	if err != nil {
		return nil, wrapErr("get environment", err)
	}
	return &env, nil
}

// ListEnvironments retrieves all environments
func (s *Store) ListEnvironments(ctx context.Context) ([]Environment, error) {
	envs := []Environment{}
	if err := s.db.WithContext(ctx).Order("id").Find(&envs).Error; err != nil {
		return nil, wrapErr("list environments", err)
	}
	return envs, nil
}

// ListSchemas retrieves all schemas
func (s *Store) ListSchemas(ctx context.Context) ([]Schema, error) {
	schemas := []Schema{}
	if err := s.db.WithContext(ctx).Order("id").Find(&schemas).Error; err != nil {
		return nil, wrapErr("list schemas", err)
	}
	return schemas, nil
}

// FindOrCreateSchema returns the schema with the given path in env, creating it if absent
func (s *Store) FindOrCreateSchema(ctx context.Context, envID int64, path string) (*Schema, error) {
	var schema *Schema
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		schema, err = findOrCreateSchema(tx, envID, path)
		return err
	})
	return schema, err
}

func findOrCreateSchema(tx *gorm.DB, envID int64, path string) (*Schema, error) {
	var schema Schema
	err := tx.Where("environment_id = ? AND path = ?", envID, path).First(&schema).Error
	if err == nil {
		return &schema, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, wrapErr("get schema", err)
	}
	schema = Schema{EnvironmentID: envID, Path: path}
	if err := tx.Create(&schema).Error; err != nil {
		return nil, wrapErr("create schema", err)
	}
	return &schema, nil
}

// ListMethodTypes retrieves the HTTP verb taxonomy
func (s *Store) ListMethodTypes(ctx context.Context) ([]MethodType, error) {
	types := []MethodType{}
	if err := s.db.WithContext(ctx).Order("id").Find(&types).Error; err != nil {
		return nil, wrapErr("list method types", err)
	}
	return types, nil
}

// MethodTypeByName resolves an HTTP verb, case-insensitively
func (s *Store) MethodTypeByName(ctx context.Context, name string) (*MethodType, error) {
	return methodTypeByName(s.db.WithContext(ctx), name)
}

func methodTypeByName(tx *gorm.DB, name string) (*MethodType, error) {
	var mt MethodType
	err := tx.Where("name = ?", strings.ToUpper(name)).First(&mt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("method type", name)
	}
	if err != nil {
		return nil, wrapErr("get method type", err)
	}
	return &mt, nil
}

// ListMethods retrieves all methods with their verb
func (s *Store) ListMethods(ctx context.Context) ([]Method, error) {
	methods := []Method{}
	if err := s.db.WithContext(ctx).Preload("MethodType").Order("id").Find(&methods).Error; err != nil {
		return nil, wrapErr("list methods", err)
	}
	return methods, nil
}

// CreateMethod creates a new method
func (s *Store) CreateMethod(ctx context.Context, m *Method) error {
	return wrapErr("create method", s.db.WithContext(ctx).Omit("MethodType").Create(m).Error)
}

// FindMethod returns the method of env whose verb and path template fit the
// concrete url, or nil when none does. Earliest-created wins.
func (s *Store) FindMethod(ctx context.Context, envID, methodTypeID int64, url string) (*Method, error) {
	return findMethod(s.db.WithContext(ctx), envID, methodTypeID, url)
}

func findMethod(tx *gorm.DB, envID, methodTypeID int64, url string) (*Method, error) {
	var methods []Method
	err := tx.Joins("JOIN schemas ON schemas.id = methods.schema_id").
		Where("schemas.environment_id = ? AND methods.method_type_id = ?", envID, methodTypeID).
		Order("methods.id").
		Find(&methods).Error
	if err != nil {
		return nil, wrapErr("find method", err)
	}
	for i := range methods {
		if methods[i].Path != "" && PathTemplateMatches(methods[i].Path, url) {
			return &methods[i], nil
		}
	}
	return nil, nil
}

// globEscaper quotes doublestar metacharacters in literal segments
var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`, "{", `\{`, "}", `\}`)

// templateGlob turns /products/{id} or /products/:id into the doublestar
// pattern products/*
func templateGlob(template string) string {
	segments := strings.Split(strings.Trim(template, "/"), "/")
	for i, seg := range segments {
		switch {
		case len(seg) > 2 && strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}"):
			segments[i] = "*"
		case len(seg) > 1 && strings.HasPrefix(seg, ":"):
			segments[i] = "*"
		default:
			segments[i] = globEscaper.Replace(seg)
		}
	}
	return strings.Join(segments, "/")
}

// PathTemplateMatches reports whether a concrete path fits a template such
// as /products/{id} or /products/:id. Parameters match exactly one
// non-empty segment.
func PathTemplateMatches(template, path string) bool {
	path = strings.Trim(path, "/")
	for _, seg := range strings.Split(path, "/") {
		if seg == "" && path != "" {
			return false
		}
	}
	pattern := templateGlob(template)
	if path == "" {
		return pattern == ""
	}
	ok, err := doublestar.Match(pattern, path)
	return err == nil && ok
}

// ListAllowedParameters retrieves all declared parameters
func (s *Store) ListAllowedParameters(ctx context.Context) ([]AllowedParameter, error) {
	params := []AllowedParameter{}
	if err := s.db.WithContext(ctx).Order("id").Find(&params).Error; err != nil {
		return nil, wrapErr("list allowed parameters", err)
	}
	return params, nil
}

// CreateAllowedParameter creates a parameter contract; a nil MethodID makes it global
func (s *Store) CreateAllowedParameter(ctx context.Context, p *AllowedParameter) error {
	switch p.In {
	case InQuery, InHeader, InPath, InBody:
	default:
		return apperrors.NewValidationError("in", "unsupported parameter location "+strconv.Quote(p.In))
	}
	return wrapErr("create allowed parameter", s.db.WithContext(ctx).Create(p).Error)
}
