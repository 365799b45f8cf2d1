// Package toggles holds the runtime switches that route requests upstream.
package toggles

import (
	"log/slog"
	"sync/atomic"
)

// Registry holds the "force full proxy" and "sync all requests" switches.
// The zero value has both off. Values are not persisted.
type Registry struct {
	forceProxy atomic.Bool
	sync       atomic.Bool
}

// New creates a registry with the given initial values
func New(forceProxy, sync bool) *Registry {
	r := &Registry{}
	r.forceProxy.Store(forceProxy)
	r.sync.Store(sync)
	return r
}

// ParseStatus reports whether a status segment turns a switch on. Only the
// exact string "true" does; any other value, including "TRUE", turns it off.
func ParseStatus(status string) bool {
	return status == "true"
}

func (r *Registry) ForceProxy() bool { return r.forceProxy.Load() }

func (r *Registry) SetForceProxy(on bool) {
	if r.forceProxy.Swap(on) != on {
		slog.Info("toggle changed", "toggle", "proxyAllApis", "value", on)
	}
}

func (r *Registry) Sync() bool { return r.sync.Load() }

func (r *Registry) SetSync(on bool) {
	if r.sync.Swap(on) != on {
		slog.Info("toggle changed", "toggle", "syncAllApis", "value", on)
	}
}

// Snapshot is the JSON view of the registry
type Snapshot struct {
	ProxyAllApis    bool `json:"proxyAllApis"`
	SyncingRequests bool `json:"syncingRequests"`
}

func (r *Registry) Snapshot() Snapshot {
	return Snapshot{ProxyAllApis: r.ForceProxy(), SyncingRequests: r.Sync()}
}
