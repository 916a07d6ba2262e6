// Package server exposes the ownership search over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/proprio-data/cadastre-api/internal/cadastre"
	"github.com/proprio-data/cadastre-api/internal/config"
	"github.com/proprio-data/cadastre-api/internal/geostore"
	"github.com/proprio-data/cadastre-api/internal/search"
)

// Searcher is the orchestrator surface the handlers call.
type Searcher interface {
	Search(ctx context.Context, region geostore.Region, limit int) *search.Result
	SearchStream(ctx context.Context, region geostore.Region, limit int, onOwner func(cadastre.OwnerResult) error) *search.StreamStats
}

// Enricher resolves one SIREN directly, for the owner detail endpoint.
type Enricher interface {
	Enrich(ctx context.Context, ownerID string) *cadastre.CompanyEnrichment
}

// Server wires the HTTP routes to the search orchestrator.
type Server struct {
	searcher Searcher
	enricher Enricher
	apiKeys  map[string]bool
	log      *zap.Logger
}

// New creates a Server.
func New(cfg config.ServerConfig, searcher Searcher, enricher Enricher) *Server {
	keys := make(map[string]bool, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		keys[k] = true
	}
	return &Server{
		searcher: searcher,
		enricher: enricher,
		apiKeys:  keys,
		log:      zap.L().With(zap.String("component", "server")),
	}
}

// Router builds the chi router with middleware and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Api-Key"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Post("/search/polygon", s.handlePolygon)
		r.Post("/search/polygon/stream", s.handlePolygonStream)
		r.Post("/search/radius", s.handleRadius)
		r.Get("/owners/{siren}", s.handleOwner)
	})

	return r
}

type polygonRequest struct {
	Points []geostore.Point `json:"points"`
	Limit  int              `json:"limite"`
}

type radiusRequest struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Meters    float64 `json:"rayon_metres"`
	Limit     int     `json:"limite"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePolygon(w http.ResponseWriter, r *http.Request) {
	var req polygonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res := s.searcher.Search(r.Context(), geostore.Polygon{Points: req.Points}, req.Limit)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRadius(w http.ResponseWriter, r *http.Request) {
	var req radiusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	region := geostore.RadiusQuery{
		Center: geostore.Point{Longitude: req.Longitude, Latitude: req.Latitude},
		Meters: req.Meters,
	}
	res := s.searcher.Search(r.Context(), region, req.Limit)
	writeJSON(w, http.StatusOK, res)
}

// handlePolygonStream emits newline-delimited JSON: one owner object per
// line, then a final line carrying the run tallies. The request context is
// the disconnect signal; the orchestrator stops enriching as soon as the
// client goes away.
func (s *Server) handlePolygonStream(w http.ResponseWriter, r *http.Request) {
	var req polygonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	stats := s.searcher.SearchStream(r.Context(), geostore.Polygon{Points: req.Points}, req.Limit,
		func(owner cadastre.OwnerResult) error {
			if err := enc.Encode(owner); err != nil {
				return err
			}
			if flusher != nil {
				flusher.Flush()
			}
			return nil
		})

	_ = enc.Encode(map[string]*search.StreamStats{"stats": stats})
	if flusher != nil {
		flusher.Flush()
	}
}

func (s *Server) handleOwner(w http.ResponseWriter, r *http.Request) {
	siren := chi.URLParam(r, "siren")

	enr := s.enricher.Enrich(r.Context(), siren)
	if enr == nil {
		writeError(w, http.StatusNotFound, "owner not found")
		return
	}
	writeJSON(w, http.StatusOK, enr)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
