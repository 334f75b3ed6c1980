package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rubiojr/sift/pkg/enrich"
	"github.com/rubiojr/sift/pkg/fallback"
	"github.com/rubiojr/sift/pkg/version"
)

func (s *Server) HandleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := homePage(r.URL.Query().Get("query")).Render(r.Context(), w); err != nil {
		s.logger.Errorf("Error rendering home page: %v", err)
	}
}

// HandleSearchPage serves the rendered results page. It always answers 200;
// every failure below it has already degraded to a fallback.
func (s *Server) HandleSearchPage(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	page := s.current().Pipeline.Page(r.Context(), query)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, page); err != nil {
		s.logger.Debugf("Error writing page: %v", err)
	}
}

func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "Missing query parameter", "Query parameter 'query' is required")
		return
	}

	p := s.current().Pipeline
	results := p.Results(r.Context(), query)

	response := SearchResponse{
		Query:   query,
		Tokens:  p.Tokens(query),
		Results: results,
		Count:   len(results),
	}

	s.writeJSON(w, http.StatusOK, response)
}

// HandleSearchStream upgrades to a websocket and sends every result as soon
// as it is enriched, in aggregation order, followed by a done message.
func (s *Server) HandleSearchStream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		s.logger.Debugf("websocket upgrade failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	// The hijacked connection no longer cancels r.Context, so a read loop
	// watches for the client going away and stops outstanding fetches.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	sent := s.current().Pipeline.Stream(ctx, query, func(res enrich.Result) bool {
		msg := StreamMessage{Type: "result", Result: &res}
		return conn.WriteJSON(msg) == nil
	})

	if err := conn.WriteJSON(StreamMessage{Type: "done", Count: sent}); err != nil {
		s.logger.Debugf("websocket write failed: %v", err)
		return
	}
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}

func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	response := StatsResponse{Fallbacks: fallback.Stats()}

	if src := s.current().Stats; src != nil {
		stats, err := src.Stats(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "Failed to get stats", err.Error())
			return
		}
		response.Index = stats
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
	}

	s.writeJSON(w, http.StatusOK, health)
}
