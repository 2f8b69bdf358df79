// Package web implements the optional status server exposing the
// application history over a small JSON API.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/didip/tollbooth/v8"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/autoapply/app/store"
)

// Persistence defines storage operations the status server reads from
type Persistence interface {
	ListApplications(limit int) ([]store.ApplicationInfo, error)
	StatusCounts() (map[string]int, error)
}

// Server represents the status server
type Server struct {
	store        Persistence
	version      string
	hostname     string
	passwordHash string // bcrypt hash for basic auth, empty disables auth
	startedAt    time.Time
}

var apiLimiter = tollbooth.NewLimiter(10, nil)

// New creates the status server
func New(persistence Persistence, version, hostname, passwordHash string) *Server {
	return &Server{
		store:        persistence,
		version:      version,
		hostname:     hostname,
		passwordHash: passwordHash,
		startedAt:    time.Now(),
	}
}

// Run starts the server and blocks until the context is canceled
func (s *Server) Run(ctx context.Context, address string) error {
	server := &http.Server{
		Addr:              address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown status server: %v", err)
		}
	}()

	log.Printf("[INFO] starting status server on %s", address)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status server failed: %w", err)
	}
	return nil
}

// routes returns the http.Handler with all routes configured
func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	router.Use(
		rest.RealIP,
		rest.Recoverer(log.Default()),
		rest.Throttle(100),
		rest.AppInfo("autoapply", "umputun", s.version),
		rest.Ping,
		rest.Trace,
		rest.SizeLimit(16*1024),
		logger.New(logger.Log(log.Default()), logger.Prefix("[DEBUG]")).Handler,
	)

	if s.passwordHash != "" {
		log.Printf("[INFO] authentication enabled for status server")
		router.Use(s.authMiddleware)
	}

	router.Mount("/api/v1").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		api.Use(tollbooth.HTTPMiddleware(apiLimiter))
		api.HandleFunc("GET /status", s.handleStatus)
		api.HandleFunc("GET /applications", s.handleApplications)
	})

	return router
}
