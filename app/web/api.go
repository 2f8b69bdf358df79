package web

import (
	"net/http"
	"strconv"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"

	"github.com/umputun/autoapply/app/store"
)

const defaultApplicationsLimit = 50

// StatusResponse is the payload of GET /api/v1/status
type StatusResponse struct {
	Host      string         `json:"host"`
	Version   string         `json:"version"`
	StartedAt time.Time      `json:"started_at"`
	Now       time.Time      `json:"now"`
	Counts    map[string]int `json:"counts"`
	Total     int            `json:"total"`
}

// ApplicationsResponse is the payload of GET /api/v1/applications
type ApplicationsResponse struct {
	Applications []store.ApplicationInfo `json:"applications"`
	Count        int                     `json:"count"`
}

// handleStatus reports per-status counts from the history store
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.StatusCounts()
	if err != nil {
		log.Printf("[WARN] failed to get status counts: %v", err)
		http.Error(w, "failed to get status counts", http.StatusInternalServerError)
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	rest.RenderJSON(w, StatusResponse{
		Host:      s.hostname,
		Version:   s.version,
		StartedAt: s.startedAt,
		Now:       time.Now(),
		Counts:    counts,
		Total:     total,
	})
}

// handleApplications returns recent applications, newest first.
// Optional limit query param caps the result, default 50.
func (s *Server) handleApplications(w http.ResponseWriter, r *http.Request) {
	limit := defaultApplicationsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	apps, err := s.store.ListApplications(limit)
	if err != nil {
		log.Printf("[WARN] failed to list applications: %v", err)
		http.Error(w, "failed to list applications", http.StatusInternalServerError)
		return
	}

	rest.RenderJSON(w, ApplicationsResponse{Applications: apps, Count: len(apps)})
}
