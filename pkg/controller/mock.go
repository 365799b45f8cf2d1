package controller

import (
	"log/slog"
	"net/http"

	"github.com/objectedge/occ-tools-sub002/pkg/httputil"
	"github.com/objectedge/occ-tools-sub002/pkg/mockfile"
)

type mockQuery struct {
	Path string `schema:"path"`
}

// HandleMock serves a JSON file from the mock directory. Failures are
// reported with status 200 and an error envelope.
func (c *Controller) HandleMock(w http.ResponseWriter, r *http.Request) {
	var q mockQuery
	if err := c.decoder.Decode(&q, r.URL.Query()); err != nil {
		slog.Warn("failed to decode mock query", "error", err)
	}

	v, err := mockfile.Lookup(c.mockDir, q.Path)
	if err != nil {
		slog.Warn("mock lookup failed", "path", q.Path, "error", err)
		httputil.WriteJSON(w, http.StatusOK, mockfile.ErrorEnvelope(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}
