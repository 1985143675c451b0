package handlers

import (
	"net/http"

	"face-gallery/internal/middleware"

	"github.com/gorilla/mux"
)

// Router builds the API routes. Request metrics are recorded per route
// template.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/media", h.ListMedia).Methods(http.MethodGet)
	api.HandleFunc("/media/{id:[0-9]+}", h.GetMedia).Methods(http.MethodGet)
	api.HandleFunc("/media/{id:[0-9]+}", h.DeleteMedia).Methods(http.MethodDelete)
	api.HandleFunc("/media/{id:[0-9]+}/faces", h.GetFaces).Methods(http.MethodGet)
	api.HandleFunc("/media/{id:[0-9]+}/faces/{faceKey}", h.SaveFaceTag).Methods(http.MethodPut)
	api.HandleFunc("/media/{id:[0-9]+}/full", h.GetFullImage).Methods(http.MethodGet)
	api.HandleFunc("/media/{id:[0-9]+}/inspect", h.GetInspection).Methods(http.MethodGet)
	api.HandleFunc("/thumbnail/{id:[0-9]+}", h.GetThumbnail).Methods(http.MethodGet)

	api.HandleFunc("/batch", h.GetBatchStatus).Methods(http.MethodGet)
	api.HandleFunc("/batch", h.TriggerBatch).Methods(http.MethodPost)
	api.HandleFunc("/index", h.TriggerIndex).Methods(http.MethodPost)
	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)

	return r
}
