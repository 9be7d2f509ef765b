// Package health serves liveness and readiness probes.
package health

import (
	"net/http"

	"github.com/dylan7474/planetaryLogger/internal/elements"
)

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Readyz returns 200 "ready\n" once the store holds an element set with at
// least one body, and 503 until then.
func Readyz(store *elements.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if set := store.Get(); set == nil || len(set.Bodies) == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("elements not loaded\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready\n"))
	}
}
