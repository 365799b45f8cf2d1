// Package openapi seeds the catalog from OpenAPI 3 documents.
package openapi

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/objectedge/occ-tools-sub002/pkg/store"
)

// Catalog is where imported documents are written
type Catalog interface {
	ImportCatalog(ctx context.Context, envID int64, imp store.CatalogImport) (*store.Schema, error)
}

// Result summarizes one import
type Result struct {
	Schema     *store.Schema
	Methods    int
	Parameters int
	Skipped    []string // operations with an unsupported verb
}

var supportedVerbs = map[string]bool{"GET": true, "POST": true, "PUT": true, "DELETE": true}

// ImportFile loads the document at path and imports it into env
func ImportFile(ctx context.Context, catalog Catalog, env *store.Environment, path string) (*Result, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}
	return Import(ctx, catalog, env, path, doc)
}

// Import writes doc as the schema named schemaPath
func Import(ctx context.Context, catalog Catalog, env *store.Environment, schemaPath string, doc *openapi3.T) (*Result, error) {
	imp, skipped := Convert(schemaPath, doc)

	schema, err := catalog.ImportCatalog(ctx, env.ID, imp)
	if err != nil {
		return nil, err
	}

	res := &Result{Schema: schema, Methods: len(imp.Methods), Parameters: len(imp.Global), Skipped: skipped}
	for _, m := range imp.Methods {
		res.Parameters += len(m.Parameters)
	}
	slog.Info("imported schema", "path", schemaPath, "environment", env.Name,
		"methods", res.Methods, "parameters", res.Parameters, "skipped", len(skipped))
	return res, nil
}

// Convert flattens doc into a catalog import. Operations are ordered by path
// and verb so ids are stable across imports.
func Convert(schemaPath string, doc *openapi3.T) (store.CatalogImport, []string) {
	imp := store.CatalogImport{Path: schemaPath}
	var skipped []string

	if doc.Components != nil {
		names := make([]string, 0, len(doc.Components.Parameters))
		for name := range doc.Components.Parameters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if p, ok := parameter(doc.Components.Parameters[name]); ok {
				imp.Global = append(imp.Global, p)
			}
		}
	}

	if doc.Paths == nil {
		return imp, skipped
	}
	paths := doc.Paths.Map()
	keys := make([]string, 0, len(paths))
	for path := range paths {
		keys = append(keys, path)
	}
	sort.Strings(keys)

	for _, path := range keys {
		item := paths[path]
		ops := item.Operations()
		verbs := make([]string, 0, len(ops))
		for verb := range ops {
			verbs = append(verbs, verb)
		}
		sort.Strings(verbs)

		for _, verb := range verbs {
			op := ops[verb]
			verb = strings.ToUpper(verb)
			if !supportedVerbs[verb] {
				skipped = append(skipped, verb+" "+path)
				continue
			}
			imp.Methods = append(imp.Methods, method(verb, path, item, op))
		}
	}
	return imp, skipped
}

func method(verb, path string, item *openapi3.PathItem, op *openapi3.Operation) store.ImportedMethod {
	operationID := op.OperationID
	if operationID == "" {
		operationID = verb + " " + path
	}

	im := store.ImportedMethod{
		Verb: verb,
		Method: store.Method{
			OperationID: operationID,
			Path:        path,
			Summary:     op.Summary,
			Description: op.Description,
			Produces:    strings.Join(produces(op), ","),
		},
	}

	// Operation parameters override path-level ones with the same name and location
	seen := map[string]bool{}
	for _, ref := range op.Parameters {
		if p, ok := parameter(ref); ok {
			seen[p.In+":"+p.Name] = true
			im.Parameters = append(im.Parameters, p)
		}
	}
	for _, ref := range item.Parameters {
		if p, ok := parameter(ref); ok && !seen[p.In+":"+p.Name] {
			im.Parameters = append(im.Parameters, p)
		}
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		body := op.RequestBody.Value
		im.Parameters = append(im.Parameters, store.AllowedParameter{
			In:          store.InBody,
			Name:        "body",
			Type:        strings.Join(sortedKeys(body.Content), ","),
			Required:    body.Required,
			Description: body.Description,
		})
	}
	return im
}

func parameter(ref *openapi3.ParameterRef) (store.AllowedParameter, bool) {
	if ref == nil || ref.Value == nil {
		return store.AllowedParameter{}, false
	}
	p := ref.Value
	switch p.In {
	case store.InQuery, store.InHeader, store.InPath:
	default:
		return store.AllowedParameter{}, false
	}
	return store.AllowedParameter{
		In:          p.In,
		Name:        p.Name,
		Type:        schemaType(p.Schema),
		Required:    p.Required,
		Description: p.Description,
	}, true
}

func schemaType(ref *openapi3.SchemaRef) string {
	if ref == nil || ref.Value == nil || ref.Value.Type == nil {
		return ""
	}
	return strings.Join(ref.Value.Type.Slice(), ",")
}

func produces(op *openapi3.Operation) []string {
	if op.Responses == nil {
		return nil
	}
	set := map[string]bool{}
	for _, resp := range op.Responses.Map() {
		if resp == nil || resp.Value == nil {
			continue
		}
		for ct := range resp.Value.Content {
			set[ct] = true
		}
	}
	out := make([]string, 0, len(set))
	for ct := range set {
		out = append(out, ct)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(content openapi3.Content) []string {
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
