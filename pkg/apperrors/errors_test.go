package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"not found", NewNotFoundError("descriptor", "7"), http.StatusNotFound, "NOT_FOUND"},
		{"validation", NewValidationError("url", "required"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"integrity", NewIntegrityError("create descriptor", errors.New("FOREIGN KEY constraint failed")), http.StatusInternalServerError, "SCHEMA_INTEGRITY_VIOLATION"},
		{"fixture", NewFixtureConfigError(3, "no response data"), http.StatusInternalServerError, "FIXTURE_CONFIGURATION_ERROR"},
		{"upstream", NewUpstreamError("http://remote", errors.New("connection refused")), http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"},
		{"wrapped", fmt.Errorf("failed to load: %w", NewNotFoundError("schema", "")), http.StatusNotFound, "NOT_FOUND"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.err))
			assert.Equal(t, tt.code, GetErrorCode(tt.err))
		})
	}
}

func TestPredicates(t *testing.T) {
	cause := errors.New("UNIQUE constraint failed")
	err := fmt.Errorf("failed to save: %w", NewIntegrityError("save", cause))

	assert.True(t, IsIntegrity(err))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, IsNotFound(err))
	assert.True(t, IsFixtureConfig(NewFixtureConfigError(1, "x")))
	assert.True(t, IsValidation(NewValidationError("", "bad")))
	assert.Equal(t, "descriptor not found", NewNotFoundError("descriptor", "").Error())
}
