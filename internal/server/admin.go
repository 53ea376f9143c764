package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/talkline/chat-app/internal/metrics"
	"github.com/talkline/chat-app/internal/registry"
)

// AdminHandler serves the monitoring surface consumed by GUIs and scrapers:
//
//	GET /healthz  liveness plus connection count and uptime
//	GET /stats    the statistics document
//	GET /audit    the audit log as a JSON array
//	GET /metrics  Prometheus metrics
func AdminHandler(reg *registry.Registry, startedAt time.Time) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := struct {
			Status      string `json:"status"`
			Connections int    `json:"connections"`
			Uptime      string `json:"uptime"`
		}{
			Status:      "ok",
			Connections: len(reg.Clients()),
			Uptime:      time.Since(startedAt).Round(time.Second).String(),
		}
		writeJSON(w, resp)
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, reg.Statistics())
	})

	mux.HandleFunc("/audit", func(w http.ResponseWriter, r *http.Request) {
		data, err := reg.Audit().ExportJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	})

	mux.Handle("/metrics", metrics.Handler())

	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
