// Package mockfile serves static JSON mocks from a directory.
package mockfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ohler55/ojg/oj"
)

// Envelope is the body returned when a mock cannot be served
type Envelope struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// Lookup reads the JSON file at rel below root and returns its parsed
// content. rel must stay inside root.
func Lookup(root, rel string) (any, error) {
	if strings.TrimSpace(rel) == "" {
		return nil, errors.New("missing required query parameter: path")
	}

	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("mock path %s is outside the mock directory", rel)
	}

	data, err := os.ReadFile(filepath.Join(root, clean))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("mock file %s not found", rel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mock file %s: %w", rel, err)
	}

	v, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("mock file %s is not valid JSON: %w", rel, err)
	}
	return v, nil
}

// ErrorEnvelope wraps a lookup failure for the response body
func ErrorEnvelope(err error) Envelope {
	return Envelope{Error: true, Message: err.Error()}
}
