package gateway

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/postgram/postgram/internal/feed"
)

const maxEventBytes = 2 << 20

// buildRouter constructs the chi mux with all routes wired.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth())
	r.Post("/hooks/post-published", s.handlePostPublished())

	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	return r
}

// HealthResponse is the JSON response for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
	}
}

// EventResponse is the JSON response for POST /hooks/post-published.
type EventResponse struct {
	Accepted   bool   `json:"accepted"`
	Attempted  bool   `json:"attempted"`
	SkipReason string `json:"skip_reason,omitempty"`
	Delivered  bool   `json:"delivered,omitempty"`
	MessageID  string `json:"message_id,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
}

// handlePostPublished decodes the CMS event and runs it through the
// delivery pipeline. A failed delivery still answers 200: the event was
// consumed and will not be retried.
func (s *Server) handlePostPublished() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		var ev feed.PostPublishedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			http.Error(w, "invalid event payload", http.StatusBadRequest)
			return
		}
		if ev.PostID == "" {
			http.Error(w, "missing post_id", http.StatusBadRequest)
			return
		}

		out, err := s.handler.HandlePostPublished(r.Context(), ev)
		if err != nil {
			s.logger.Error("event handling failed", "post_id", ev.PostID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		resp := EventResponse{
			Accepted:   true,
			Attempted:  out.Attempted,
			SkipReason: out.SkipReason,
		}
		if out.Attempted {
			resp.Delivered = out.Result.OK
			resp.MessageID = out.Result.MessageID
			resp.ErrorKind = string(out.Result.ErrorKind)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
