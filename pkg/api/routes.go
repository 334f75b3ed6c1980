package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.HandleHome)
	mux.HandleFunc("GET /search/", s.HandleSearchPage)

	// API routes with method-specific routing
	mux.HandleFunc("GET /api/search", s.HandleSearch)
	mux.HandleFunc("GET /api/stats", s.HandleStats)
	mux.HandleFunc("GET /ws/search", s.HandleSearchStream)
	mux.HandleFunc("GET /health", s.HandleHealth)
}
