// Package api exposes the scheduling service over HTTP: schedule CRUD, the
// dispatch webhook, recent posts, metrics, and health.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/muaviaUsmani/cadence/internal/autopost"
	apperrors "github.com/muaviaUsmani/cadence/internal/errors"
	"github.com/muaviaUsmani/cadence/internal/logger"
	"github.com/muaviaUsmani/cadence/internal/metrics"
	"github.com/muaviaUsmani/cadence/internal/schedule"
)

// defaultPostsLimit caps the posts listing when the client does not ask for less
const defaultPostsLimit = 20

// Server holds the HTTP handlers and their dependencies
type Server struct {
	service *autopost.Service
	log     logger.Logger
}

// NewServer creates an API server around the scheduling service
func NewServer(service *autopost.Service) *Server {
	return &Server{
		service: service,
		log:     logger.Default().WithComponent(logger.ComponentAPI),
	}
}

// Handler builds the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /schedules", s.recovered(s.handleCreate))
	mux.HandleFunc("GET /schedules/{id}", s.recovered(s.handleGet))
	mux.HandleFunc("PUT /schedules/{id}", s.recovered(s.handleUpdate))
	mux.HandleFunc("DELETE /schedules/{id}", s.recovered(s.handleDelete))
	mux.HandleFunc("POST /schedules/{id}/deactivate", s.recovered(s.handleDeactivate))
	mux.HandleFunc("GET /schedules/{id}/posts", s.recovered(s.handlePosts))
	mux.HandleFunc("POST /hooks/run", s.recovered(s.handleRunHook))
	mux.HandleFunc("GET /metrics", s.recovered(s.handleMetrics))
	mux.HandleFunc("GET /healthz", s.recovered(s.handleHealth))

	return mux
}

// recovered wraps a handler so a panic becomes a 500 instead of killing the
// process. recover must run inline here; it returns nil when called from a
// deeper frame.
func (s *Server) recovered(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				panicErr := apperrors.NewPanicError(rec)
				s.log.Error("Handler panicked",
					"path", r.URL.Path,
					"panic", apperrors.FormatPanicForLog(panicErr))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		h(w, r)
	}
}

// scheduleRequest is the create/update request body
type scheduleRequest struct {
	Frequency string          `json:"frequency"`
	TimeOfDay string          `json:"time_of_day"`
	Timezone  string          `json:"timezone,omitempty"`
	Mode      string          `json:"mode,omitempty"`
	Prompt    json.RawMessage `json:"prompt"`
}

// scheduleResponse wraps a schedule with its dispatch status
type scheduleResponse struct {
	Schedule   *schedule.Schedule `json:"schedule"`
	Dispatched bool               `json:"dispatched"`
}

// toInput converts the request body to a service input
func (req *scheduleRequest) toInput() (autopost.Input, error) {
	var prompt schedule.PromptSource
	if len(req.Prompt) > 0 {
		var err error
		prompt, err = schedule.UnmarshalPromptSource(req.Prompt)
		if err != nil {
			return autopost.Input{}, err
		}
	}

	return autopost.Input{
		Frequency: req.Frequency,
		TimeOfDay: req.TimeOfDay,
		Timezone:  req.Timezone,
		Mode:      req.Mode,
		Prompt:    prompt,
	}, nil
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in, err := req.toInput()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.service.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusCreated, scheduleResponse{Schedule: res.Schedule, Dispatched: res.Dispatched})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sch, err := s.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sch)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in, err := req.toInput()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.service.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		if errors.Is(err, schedule.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "schedule not found")
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, scheduleResponse{Schedule: res.Schedule, Dispatched: res.Dispatched})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Deactivate(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.service.Get(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}

	posts, err := s.service.RecentPosts(r.Context(), id, defaultPostsLimit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if posts == nil {
		posts = []*schedule.Post{}
	}
	s.writeJSON(w, http.StatusOK, posts)
}

// runHookRequest is the body the dispatch service posts back when a delayed
// message fires
type runHookRequest struct {
	JobID string `json:"jobId"`
}

func (s *Server) handleRunHook(w http.ResponseWriter, r *http.Request) {
	var req runHookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JobID == "" {
		s.writeError(w, http.StatusBadRequest, "missing jobId")
		return
	}

	if err := s.service.Run(r.Context(), req.JobID); err != nil {
		if errors.Is(err, schedule.ErrNotFound) {
			// The schedule was deleted while the job was in flight; 200 so
			// the dispatch service does not retry a dead job
			s.log.Warn("Webhook for unknown schedule", "schedule_id", req.JobID)
			w.WriteHeader(http.StatusOK)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, metrics.Global().Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeServiceError maps store errors to HTTP status codes
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, schedule.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "schedule not found")
		return
	}
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
