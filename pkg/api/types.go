package api

import (
	"time"

	"github.com/rubiojr/sift/pkg/enrich"
	"github.com/rubiojr/sift/pkg/fallback"
	"github.com/rubiojr/sift/pkg/storage"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type SearchResponse struct {
	Query   string          `json:"query"`
	Tokens  []string        `json:"tokens"`
	Results []enrich.Result `json:"results"`
	Count   int             `json:"count"`
}

type StatsResponse struct {
	Index     *storage.Stats     `json:"index,omitempty"`
	Fallbacks []fallback.OpStats `json:"fallbacks"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// StreamMessage is one websocket frame of /ws/search. Type is "result" for
// every enriched url and "done" once, last.
type StreamMessage struct {
	Type   string         `json:"type"`
	Result *enrich.Result `json:"result,omitempty"`
	Count  int            `json:"count,omitempty"`
}
