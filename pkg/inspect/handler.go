package inspect

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the inspector's HTTP routes:
//
//	GET /graph   - JSON snapshot of nodes, edges, and totals
//	GET /metrics - Prometheus metrics (default registry)
//	GET /live    - WebSocket stream of engine events
//	GET /healthz - liveness probe
//
// Mount it on any router:
//
//	r := chi.NewRouter()
//	r.Mount("/debug/reactive", in.Handler())
func (in *Inspector) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/graph", in.handleGraph)
	r.Get("/live", in.handleLive)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}

func (in *Inspector) handleGraph(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(in.Snapshot()); err != nil {
		in.logger.Error("graph snapshot encode failed", "error", err)
	}
}
