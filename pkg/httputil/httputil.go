package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/objectedge/occ-tools-sub002/pkg/apperrors"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id between client, server and upstream
const RequestIDHeader = "X-Request-Id"

// hopByHop headers apply to a single connection and are never forwarded
var hopByHop = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// RequestID returns the incoming request id, or a new one when absent
func RequestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(RequestIDHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}

// CopyHeaders appends every value of src to dst
func CopyHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

// RemoveHopByHop deletes hop-by-hop headers, including those named in
// Connection
func RemoveHopByHop(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopByHop {
		h.Del(name)
	}
}

// WriteJSON encodes v as the response body with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorBody is the JSON envelope of every error response
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// RespondAppError writes err with the status and code of its AppError type
func RespondAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.GetHTTPStatus(err)
	message := err.Error()
	if status >= 500 {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", message)
	}
	WriteJSON(w, status, ErrorBody{Error: message, Message: message, Code: apperrors.GetErrorCode(err)})
}
