// Package api serves the stored product records over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sjsage522/harvester/internal/site"
	"sjsage522/harvester/internal/store"
	"sjsage522/harvester/logger"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
	pingTimeout        = 2 * time.Second
)

// Server exposes the read API
type Server struct {
	store    store.Store
	registry *site.Registry
	status   *site.Status
	log      *logger.Logger
}

// NewServer creates the API server
func NewServer(st store.Store, registry *site.Registry, status *site.Status) *Server {
	return &Server{
		store:    st,
		registry: registry,
		status:   status,
		log:      logger.ForAPI(),
	}
}

// Routes builds the router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/products", s.handleProducts)
		r.Get("/products/search", s.handleSearch)
		r.Get("/stats", s.handleStats)
		r.Get("/sites", s.handleSites)
		r.Get("/debug/products", s.handleNameQuality)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("Request served")
	})
}

// GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.log.Error().Err(err).Msg("Store ping failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "error",
			"store":  "disconnected",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"store":     "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GET /api/products[?website=]
func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.Products(r.Context(), store.Query{Website: r.URL.Query().Get("website")})
	if err != nil {
		s.writeError(w, err)
		return
	}

	names := make([]string, 0, len(recs))
	for _, rec := range recs {
		if strings.TrimSpace(rec.Name) != "" {
			names = append(names, rec.Name)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":    len(recs),
		"valid":    len(names),
		"products": names,
	})
}

// GET /api/products/search?q=&limit=
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter q is required"})
		return
	}

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxSearchLimit)
	}

	recs, err := s.store.Products(r.Context(), store.Query{Search: q, Limit: limit})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":    q,
		"count":    len(recs),
		"products": recs,
	})
}

// GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stats": stats,
		"sites": s.status.Snapshot(),
	})
}

type siteView struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	BaseURL    string   `json:"base_url"`
	Categories []string `json:"categories"`
	Accessible bool     `json:"accessible"`
}

// GET /api/sites
func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	ids := s.registry.IDs()
	out := make([]siteView, 0, len(ids))
	for _, id := range ids {
		def, err := s.registry.Definition(id)
		if err != nil {
			continue
		}
		labels, _ := s.registry.Categories(id)
		out = append(out, siteView{
			ID:         def.ID,
			Name:       def.Name,
			BaseURL:    def.BaseURL,
			Categories: labels,
			Accessible: s.status.Accessible(id),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/debug/products
func (s *Server) handleNameQuality(w http.ResponseWriter, r *http.Request) {
	nq, err := s.store.NameQuality(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nq)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.log.Error().Err(err).Msg("Store query failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store query failed"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
