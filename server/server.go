package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/pubplan/pubplan/pkg/domain"
	"github.com/pubplan/pubplan/pkg/sched"
)

// Server represents HTTP server instance
type Server struct {
	config    ConfigProvider
	platforms PlatformStore
	scheduler Scheduler
	version   string
	debug     bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// Scheduler interface for scheduling operations
type Scheduler interface {
	CanPublishNow(ctx context.Context, platformID int64, now time.Time) (sched.Decision, error)
	NextSlot(ctx context.Context, platformID int64, from time.Time) (time.Time, error)
	DailySlots(ctx context.Context, platformID int64, date time.Time) ([]time.Time, error)
	ScheduleItem(ctx context.Context, articleID, platformID int64, priority domain.Priority, now time.Time) (*domain.QueueEntry, error)
	ScheduleBatch(ctx context.Context, articleIDs []int64, platformID int64, priority domain.Priority, now time.Time) ([]*domain.QueueEntry, error)
	Reschedule(ctx context.Context, entryID int64, now time.Time) (*domain.QueueEntry, error)
	StatusReport(ctx context.Context, platformID int64, now time.Time) (*domain.StatusReport, error)
}

// PlatformStore interface for platform listing
type PlatformStore interface {
	GetPlatforms(ctx context.Context) ([]*domain.Platform, error)
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// New initializes a new server instance
func New(cfg ConfigProvider, platforms PlatformStore, scheduler Scheduler, version string, debug bool) *Server {
	s := &Server{
		config:    cfg,
		platforms: platforms,
		scheduler: scheduler,
		version:   version,
		debug:     debug,
		router:    routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	log.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("pubplan", "pubplan", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.overviewHandler)
		r.HandleFunc("GET /platforms/{id}/status", s.platformStatusHandler)
		r.HandleFunc("GET /platforms/{id}/slots", s.dailySlotsHandler)
		r.HandleFunc("POST /schedule", s.scheduleHandler)
		r.HandleFunc("POST /schedule/batch", s.scheduleBatchHandler)
		r.HandleFunc("POST /queue/{id}/reschedule", s.rescheduleHandler)
	})
}

// decodeJSON decodes a request body into v
func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close() //nolint:errcheck // nothing useful to do with close error
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// RenderJSON sends JSON response
func RenderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// RenderError sends error response as JSON
func RenderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	RenderJSON(w, r, code, map[string]string{"error": errMsg})
}
