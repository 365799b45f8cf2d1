package controller

import (
	"net/http"

	"github.com/objectedge/occ-tools-sub002/pkg/httputil"
	"github.com/objectedge/occ-tools-sub002/pkg/toggles"

	"github.com/gorilla/mux"
)

// HandleProxyAllApis sets the "force full proxy" toggle
func (c *Controller) HandleProxyAllApis(w http.ResponseWriter, r *http.Request) {
	on := toggles.ParseStatus(mux.Vars(r)["status"])
	c.toggles.SetForceProxy(on)
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"proxyAllApis": on})
}

// HandleSyncAllApis sets the "sync all requests" toggle
func (c *Controller) HandleSyncAllApis(w http.ResponseWriter, r *http.Request) {
	on := toggles.ParseStatus(mux.Vars(r)["status"])
	c.toggles.SetSync(on)
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"syncingRequests": on})
}

// HandleToggles reports both toggles
func (c *Controller) HandleToggles(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, c.toggles.Snapshot())
}
