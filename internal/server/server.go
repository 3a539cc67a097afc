package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ppiankov/truthwire/internal/logging"
	"github.com/ppiankov/truthwire/internal/model"
	"github.com/ppiankov/truthwire/internal/orchestrator"
)

// Store is a read-only view of a claim collection
type Store interface {
	Get(id string) (model.ClaimRecord, bool)
	List() []model.ClaimRecord
	Subscribe(buffer int) (<-chan orchestrator.Event, func())
}

// Dismisser removes records from the active view
type Dismisser interface {
	Dismiss(id string) bool
}

// Submitter runs a manually entered claim through deduplication
type Submitter interface {
	Submit(text string) (string, bool)
}

// Deps are the components the API exposes. Nil optional fields disable
// the routes that need them.
type Deps struct {
	Active    Store
	Library   Store
	Dismisser Dismisser
	Submitter Submitter

	// SessionState reports the live session state for /healthz
	SessionState func() string

	// Gatherer serves /metrics
	Gatherer prometheus.Gatherer
}

// Server is the observer HTTP API
type Server struct {
	deps     Deps
	engine   *gin.Engine
	server   *http.Server
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// New creates the server and registers its routes
func New(addr string, deps Deps, log *logrus.Entry) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		deps: deps,
		log:  logging.OrDiscard(log),
		upgrader: websocket.Upgrader{
			// Local observer UIs are served from other origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.registerRoutes()

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/api/v1")
	claims := v1.Group("/claims")
	{
		claims.GET("/active", s.listHandler(s.deps.Active))
		claims.GET("/library", s.listHandler(s.deps.Library))
		claims.GET("/:id", s.getClaimHandler)
		claims.DELETE("/active/:id", s.dismissHandler)
		claims.POST("", s.submitHandler)
	}

	s.engine.GET("/ws/claims", s.websocketHandler)
	s.engine.GET("/healthz", s.healthHandler)

	if s.deps.Gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}
}

// Start serves in the background. Listen errors are logged.
func (s *Server) Start() {
	s.log.WithField("address", s.server.Addr).Info("observer API listening")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("observer API stopped")
		}
	}()
}

// Shutdown stops accepting requests and waits for active ones
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown observer API: %w", err)
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("request")
	}
}
