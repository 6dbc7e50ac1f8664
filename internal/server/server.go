// Package server is the sandbox collaborator: an in-memory HTTP backend that
// speaks the donor API so the wizard can run end to end without the
// production service.
package server

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/alkime/voicebank/internal/config"
	"github.com/alkime/voicebank/internal/observe"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the HTTP server
type Server struct {
	config  *config.Config
	logger  *slog.Logger
	router  *gin.Engine
	corpus  *Corpus
	store   *Store
	metrics *observe.Metrics

	// assigned rotates the corpus offset for each new sentence assignment.
	assigned atomic.Int64
}

// New creates a new Server instance
func New(cfg *config.Config, logger *slog.Logger, corpus *Corpus, metrics *observe.Metrics) *Server {
	// Set Gin mode based on environment
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create router
	router := gin.Default()

	// Configure proxy trust for production (Fly.io)
	if cfg.Env == config.EnvProduction {
		router.TrustedPlatform = gin.PlatformFlyIO
		logger.Debug("Configured trusted platform", "platform", "fly.io")
	}

	server := &Server{
		config:  cfg,
		logger:  logger,
		router:  router,
		corpus:  corpus,
		store:   NewStore(),
		metrics: metrics,
	}

	// Setup middleware and routes
	setupSecurityMiddleware(router, cfg, logger)
	router.Use(requestMetrics(metrics))
	server.setupRoutes()

	return server
}

// Router exposes the gin engine, mostly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Store exposes the in-memory store.
func (s *Server) Store() *Store {
	return s.store
}

// Run starts the HTTP server
func Run(s *Server) error {
	s.logger.Info("Server listening",
		"port", s.config.Port,
		"media_dir", s.config.MediaDir,
		"keywords", len(s.corpus.Keywords),
		"sentences", len(s.corpus.Sentences))
	return s.router.Run(":" + s.config.Port)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Uploaded clips, linked from cross-check assignments
	s.router.Use(static.Serve(mediaPrefix, static.LocalFile(s.config.MediaDir, false)))

	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.POST("/user", s.handleCreateUser)

	s.router.GET("/keyword", s.handleKeywords)
	s.router.POST("/keyword/upload", s.handleKeywordUpload)

	s.router.GET("/sentence/assign/:userId", s.handleAssignSentences)
	s.router.POST("/sentence/upload", s.handleSentenceUpload)

	session := s.router.Group("/user/session")
	{
		session.PUT("/start", s.handleSessionStart)
		session.PUT("/progress", s.handleSessionProgress)
		session.PUT("/complete", s.handleSessionComplete)
		session.PUT("/cancel", s.handleSessionCancel)
		session.GET("/current", s.handleSessionCurrent)
		session.GET("/current-by-phone", s.handleSessionCurrentByPhone)
	}

	s.router.GET("/crosscheck/assign/:userId", s.handleAssignCrossCheck)
	s.router.POST("/crosscheck/submit", s.handleSubmitCrossCheck)
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "voicebank",
	})
}
