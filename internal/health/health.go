// Package health serves liveness and readiness probes.
package health

import (
	"net/http"
	"sync/atomic"
)

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Readiness tracks whether the daemon should receive traffic. It starts not
// ready; the daemon flips it once the propagator has been warmed up and back
// when shutdown begins.
type Readiness struct {
	ready atomic.Bool
}

// SetReady marks the service ready or not.
func (r *Readiness) SetReady(ready bool) {
	r.ready.Store(ready)
}

// Ready reports the current state.
func (r *Readiness) Ready() bool {
	return r.ready.Load()
}

// Readyz returns 200 "ready\n" when ready and 503 otherwise.
func (r *Readiness) Readyz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if !r.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready\n"))
}
