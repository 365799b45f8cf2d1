package controller

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/objectedge/occ-tools-sub002/pkg/httputil"

	"github.com/gorilla/mux"
)

var proxyMethods = []string{"GET", "POST", "PUT", "DELETE"}

// SetupRouter creates and configures the Gorilla mux router
func (c *Controller) SetupRouter() *mux.Router {
	// Proxied paths go upstream exactly as sent: no cleaning, no decoding
	r := mux.NewRouter().SkipClean(true).UseEncodedPath()

	// Apply logging middleware to all routes
	r.Use(loggingMiddleware)

	// Virtualized API and file mocks
	r.Handle("/proxy", c.engine).Methods(proxyMethods...)
	r.PathPrefix("/proxy/").Handler(c.engine).Methods(proxyMethods...)
	r.HandleFunc("/mock", c.HandleMock).Methods("GET")

	// Toggle endpoints
	r.HandleFunc("/proxy-all-apis/{status}", c.HandleProxyAllApis).Methods("GET")
	r.HandleFunc("/sync-all-apis/{status}", c.HandleSyncAllApis).Methods("GET")
	r.HandleFunc("/api/toggles", c.HandleToggles).Methods("GET")

	// Catalog listings
	r.HandleFunc("/api/environments", c.HandleListEnvironments).Methods("GET")
	r.HandleFunc("/api/schemas", c.HandleListSchemas).Methods("GET")
	r.HandleFunc("/api/method-types", c.HandleListMethodTypes).Methods("GET")
	r.HandleFunc("/api/methods", c.HandleListMethods).Methods("GET")
	r.HandleFunc("/api/allowed-parameters", c.HandleListAllowedParameters).Methods("GET")

	// Descriptor endpoints
	r.HandleFunc("/api/descriptors", c.HandleListDescriptors).Methods("GET")
	r.HandleFunc("/api/descriptors", c.HandleCreateDescriptor).Methods("POST")
	r.HandleFunc("/api/descriptors/{id}", c.HandleGetDescriptor).Methods("GET")
	r.HandleFunc("/api/descriptors/{id}", c.HandleUpdateDescriptor).Methods("PUT")
	r.HandleFunc("/api/descriptors/{id}", c.HandleDeleteDescriptor).Methods("DELETE")
	r.HandleFunc("/api/descriptors/{id}/preview", c.HandlePreviewDescriptor).Methods("GET")

	// Response variant endpoints
	r.HandleFunc("/api/descriptors/{id}/response-data", c.HandleListResponseData).Methods("GET")
	r.HandleFunc("/api/descriptors/{id}/response-data", c.HandleAddResponseData).Methods("POST")
	r.HandleFunc("/api/response-data/{id}/default", c.HandleSetDefaultResponseData).Methods("PUT")
	r.HandleFunc("/api/response-data/{id}", c.HandleDeleteResponseData).Methods("DELETE")

	return r
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// loggingMiddleware logs HTTP requests and tags them with a request id
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		requestID := httputil.RequestID(r)
		r.Header.Set(httputil.RequestIDHeader, requestID)
		w.Header().Set(httputil.RequestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		slog.Info(fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote", r.RemoteAddr,
			"duration_ms", time.Since(startTime).Milliseconds(),
			"request_id", requestID,
		)
	})
}
