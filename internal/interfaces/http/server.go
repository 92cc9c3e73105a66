package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/careloop/careloop/internal/application/usecase"
	"github.com/careloop/careloop/internal/infrastructure/monitoring"
	"github.com/careloop/careloop/internal/interfaces/http/handlers"
)

// Server is the HTTP API server.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// Config holds HTTP server settings.
type Config struct {
	Host string
	Port int
	Mode string // debug, release
}

// NewServer creates the API server.
func NewServer(cfg Config, conversations *usecase.ConversationUsecase, approvals *usecase.ApprovalUsecase, monitor *monitoring.Monitor, logger *zap.Logger) *Server {
	if cfg.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger))

	conversationHandler := handlers.NewConversationHandler(conversations, logger)
	approvalHandler := handlers.NewApprovalHandler(approvals, logger)

	setupRoutes(router, conversationHandler, approvalHandler, monitor)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	return &Server{
		server: server,
		logger: logger,
	}
}

// Start begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", zap.String("address", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

func setupRoutes(router *gin.Engine, conversationHandler *handlers.ConversationHandler, approvalHandler *handlers.ApprovalHandler, monitor *monitoring.Monitor) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	if monitor != nil {
		router.GET("/metrics", gin.WrapH(monitor.PrometheusHandler()))
		router.GET("/stats", func(c *gin.Context) {
			c.JSON(http.StatusOK, monitor.GetStats())
		})
	}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/conversations", conversationHandler.StartConversation)
		v1.GET("/conversations/:id", conversationHandler.GetConversation)

		v1.GET("/approvals/pending", approvalHandler.ListPending)
		v1.POST("/approvals/:responseID/approve", approvalHandler.Decide)
	}
}

func ginLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", statusCode),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
