package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rubiojr/sift/pkg/log"
	"github.com/rubiojr/sift/pkg/search"
	"github.com/rubiojr/sift/pkg/storage"
)

// StatsSource reports index statistics. storage.Store implements it.
type StatsSource interface {
	Stats(ctx context.Context) (*storage.Stats, error)
}

// Backend is what a request is served from. It is swapped as a unit when
// the configuration is reloaded.
type Backend struct {
	Pipeline *search.Pipeline
	Stats    StatsSource
}

type Server struct {
	backend  atomic.Pointer[Backend]
	logger   *log.Logger
	upgrader websocket.Upgrader
}

func NewServer(pipeline *search.Pipeline, stats StatsSource) *Server {
	s := &Server{
		logger: log.ForService("web"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.Swap(&Backend{Pipeline: pipeline, Stats: stats})
	return s
}

// Swap replaces the backend used by new requests and returns the previous
// one. Requests already running keep the backend they started with.
func (s *Server) Swap(b *Backend) *Backend {
	return s.backend.Swap(b)
}

func (s *Server) current() *Backend {
	return s.backend.Load()
}

// Handler returns the full middleware chain around the routes.
func (s *Server) Handler(compress bool) http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	var h http.Handler = mux
	if compress {
		h = gzhttp.GzipHandler(h)
	}
	return s.requestLogger(CorsMiddleware(h))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("Error encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

// requestLogger tags every request with an id, echoed in X-Request-ID.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithRequest(id).Debugf("%s %s %s", r.Method, r.URL.RequestURI(), time.Since(start).Round(time.Millisecond))
	})
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
