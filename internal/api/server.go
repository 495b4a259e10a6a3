package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wemix/blockwait/internal/config"
	"github.com/wemix/blockwait/internal/metrics"
	"github.com/wemix/blockwait/internal/track"
	"github.com/wemix/blockwait/internal/version"
	"github.com/wemix/blockwait/pkg/logger"
)

// Server exposes the tracked chain height over HTTP and WebSocket.
type Server struct {
	router   *gin.Engine
	server   *http.Server
	logger   *logger.Logger
	config   *config.Config
	tracker  *track.Tracker
	recorder *metrics.Recorder
	auth     *AuthMiddleware
	host     string
	port     int

	wsClients   map[*WSClient]bool
	wsClientsMu sync.RWMutex
	wsBroadcast chan WSMessage
	wsDone      chan struct{}
	wsStop      sync.Once
}

// NewServer creates an API server. The tracker and recorder may be nil;
// the corresponding endpoints then report unavailable.
func NewServer(cfg *config.Config, tracker *track.Tracker, recorder *metrics.Recorder, logger *logger.Logger) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger))

	origins := cfg.APICORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	host := cfg.APIHost
	if host == "" {
		host = config.DefaultAPIHost
	}
	port := cfg.APIPort
	if port <= 0 {
		port = config.DefaultAPIPort
	}

	server := &Server{
		router:      router,
		logger:      logger,
		config:      cfg,
		tracker:     tracker,
		recorder:    recorder,
		host:        host,
		port:        port,
		wsClients:   make(map[*WSClient]bool),
		wsBroadcast: make(chan WSMessage, wsBroadcastBufferSize),
		wsDone:      make(chan struct{}),
	}

	if cfg.APIEnableAuth {
		server.auth = NewAuthMiddleware(cfg.APIJWTSecret, logger)
	}

	server.setupRoutes()

	go server.runBroadcast()

	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/ready", s.readyHandler)

	v1 := s.router.Group("/api/v1")

	if s.auth != nil {
		v1.Use(s.auth.Authenticate())
	}

	v1.GET("/height", s.getHeight)
	v1.GET("/status", s.getStatus)
	v1.GET("/version", s.getVersion)
	v1.GET("/config", s.getConfig)
	v1.GET("/ws", s.handleWebSocket)
}

// Start begins serving in a background goroutine. If a tracker is
// attached, its height updates are forwarded to WebSocket subscribers.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.tracker != nil {
		sub := s.tracker.Subscribe()
		go s.forwardHeights(sub)
	}

	go func() {
		s.logger.Info("starting API server", zap.String("addr", addr))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop shuts the server down gracefully. Safe to call more than once and
// before Start.
func (s *Server) Stop() error {
	s.wsStop.Do(func() { close(s.wsDone) })

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shutdown API server gracefully", zap.Error(err))
		return err
	}

	s.logger.Info("API server stopped")
	return nil
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) readyHandler(c *gin.Context) {
	if s.tracker == nil || s.tracker.CurrentHeight() == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not_ready",
			"message": "no height observed yet",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().Unix(),
	})
}

// getHeight returns the most recently observed chain height.
func (s *Server) getHeight(c *gin.Context) {
	if s.tracker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "height tracking not enabled",
		})
		return
	}

	c.JSON(http.StatusOK, s.tracker.Snapshot())
}

// getStatus returns the overall service status.
func (s *Server) getStatus(c *gin.Context) {
	status := gin.H{
		"status":  "running",
		"version": version.Version,
		"source":  s.config.Source,
		"tracking": gin.H{
			"enabled": s.tracker != nil,
		},
		"metrics": gin.H{
			"enabled": s.recorder != nil,
		},
	}
	if s.tracker != nil {
		status["height"] = s.tracker.CurrentHeight()
	}

	c.JSON(http.StatusOK, status)
}

func (s *Server) getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    version.Version,
		"api":        "v1",
		"git_commit": version.GitCommit,
		"build_time": version.BuildTime,
	})
}

// getConfig returns the non-sensitive part of the running configuration.
func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"rpc_addresses":   s.config.RPCAddresses,
		"source":          s.config.Source,
		"poll_interval":   s.config.PollInterval.String(),
		"track_interval":  s.config.TrackInterval.String(),
		"metrics_enabled": s.config.MetricsEnabled,
	})
}

// forwardHeights republishes tracker updates to WebSocket subscribers.
func (s *Server) forwardHeights(sub <-chan int64) {
	for {
		select {
		case <-s.wsDone:
			return
		case height := <-sub:
			s.BroadcastHeight(height)
			s.BroadcastStatus(s.tracker.Snapshot())
		}
	}
}

// ginLogger logs each request through the structured logger.
func ginLogger(logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		if raw != "" {
			path = path + "?" + raw
		}

		logger.Info("API request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
