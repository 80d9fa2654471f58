package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ldi/homeroom/internal/tracker"
	"github.com/ldi/homeroom/pkg/models"
)

// Server is the JSON API behind the family dashboard.
type Server struct {
	tracker *tracker.Tracker
	server  *http.Server
}

func NewServer(tr *tracker.Tracker) *Server {
	return &Server{tracker: tr}
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.mux(),
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/tasks", s.handleTasks)
	mux.HandleFunc("/api/tasks/today", s.handleTodaysTasks)
	mux.HandleFunc("/api/tasks/submitted", s.handleSubmittedTasks)
	mux.HandleFunc("/api/session", s.handleSession)
	mux.HandleFunc("/api/session/checkin", s.handleCheckIn)
	mux.HandleFunc("/api/sessions", s.handleHistory)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/goal", s.handleGoal)
	mux.HandleFunc("/api/status", s.handleStatus)

	return mux
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var status *models.TaskStatus
		if v := r.URL.Query().Get("status"); v != "" {
			ts := models.TaskStatus(v)
			status = &ts
		}
		tasks, err := s.tracker.ListTasks(r.Context(), status)
		s.respond(w, tasks, err)
	case http.MethodPost:
		var t models.Task
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err := s.tracker.AddTask(r.Context(), &t)
		s.respond(w, &t, err)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleTodaysTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tracker.TodaysTasks(r.Context())
	s.respond(w, tasks, err)
}

func (s *Server) handleSubmittedTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tracker.SubmittedTasks(r.Context())
	s.respond(w, tasks, err)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		as, err := s.tracker.ActiveSession(r.Context())
		s.respond(w, as, err)
	case http.MethodPost:
		var req struct {
			Type            models.SessionType `json:"type"`
			DurationMinutes int                `json:"duration_minutes"`
			TaskID          string             `json:"task_id"`
			SubjectID       string             `json:"subject_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		as, err := s.tracker.StartSession(r.Context(), req.Type, req.DurationMinutes, req.TaskID, req.SubjectID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.respond(w, as, nil)
	case http.MethodDelete:
		session, err := s.tracker.StopSession(r.Context())
		s.respond(w, session, err)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Mood models.Mood `json:"mood"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	as, err := s.tracker.AddCheckIn(r.Context(), req.Mood)
	s.respond(w, as, err)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	sessions, err := s.tracker.SessionHistory(r.Context(), limit)
	s.respond(w, sessions, err)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.tracker.DailyStats(r.Context())
	s.respond(w, stats, err)
}

func (s *Server) handleGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := s.tracker.DailyGoal(r.Context())
	s.respond(w, goal, err)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.tracker.LiveStatus(r.Context())
	s.respond(w, status, err)
}

func (s *Server) respond(w http.ResponseWriter, data any, err error) {
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
