package controller

import (
	"net/http"

	"github.com/objectedge/occ-tools-sub002/pkg/store"
	"github.com/objectedge/occ-tools-sub002/pkg/toggles"

	"github.com/gorilla/schema"
)

// Controller manages HTTP request handling for the mock server
type Controller struct {
	store   *store.Store
	engine  http.Handler
	toggles *toggles.Registry
	mockDir string
	decoder *schema.Decoder
}

// NewController creates a new Controller instance. engine serves /proxy
// requests; mockDir is the root of file-based mocks.
func NewController(s *store.Store, engine http.Handler, t *toggles.Registry, mockDir string) *Controller {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	return &Controller{
		store:   s,
		engine:  engine,
		toggles: t,
		mockDir: mockDir,
		decoder: decoder,
	}
}
