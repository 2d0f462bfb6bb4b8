package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Search jobs
	mux.HandleFunc("/api/search-jobs", s.handleSearchJobsRoute)  // GET (list), POST (create)
	mux.HandleFunc("/api/search-jobs/stats", s.app.JobHandler.JobStatsHandler)
	mux.HandleFunc("/api/search-jobs/", s.handleSearchJobRoutes) // GET/DELETE /{id}, GET /{id}/debug

	// API routes - Cached events
	mux.HandleFunc("/api/events", s.app.EventHandler.GetEventsHandler)
	mux.HandleFunc("/api/events/ingest", s.app.EventHandler.IngestEventsHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleSearchJobsRoute dispatches the collection endpoint by method
func (s *Server) handleSearchJobsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.app.JobHandler.ListJobsHandler(w, r)
	case http.MethodPost:
		s.app.JobHandler.CreateJobHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSearchJobRoutes dispatches /api/search-jobs/{id} and subpaths
func (s *Server) handleSearchJobRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// GET /api/search-jobs/{id}/debug
	if r.Method == http.MethodGet && strings.HasSuffix(path, "/debug") {
		s.app.JobHandler.GetJobDebugHandler(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.app.JobHandler.GetJobHandler(w, r)
	case http.MethodDelete:
		s.app.JobHandler.DeleteJobHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
