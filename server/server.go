package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/pkg/pipeline"
	"go.uber.org/zap"
)

// Runner answers one query request.
type Runner interface {
	Run(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error)
}

type Config struct {
	Port            string
	Mode            string // gin mode: debug, release or test
	ShutdownTimeout time.Duration
}

type Server struct {
	config Config
	runner Runner
	logger *zap.Logger
	engine *gin.Engine
}

func NewWithConfig(config Config, runner Runner, logger *zap.Logger) *Server {
	if config.Port == "" {
		config.Port = "8000"
	}
	if config.Mode == "" {
		config.Mode = gin.ReleaseMode
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(config.Mode)

	s := &Server{
		config: config,
		runner: runner,
		logger: logger,
	}

	engine := gin.New()
	engine.Use(requestLogger(logger), recovery(logger))
	engine.POST("/hackrx/run", s.handleRun)
	engine.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	s.engine = engine

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (s *Server) handleRun(c *gin.Context) {
	var req models.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Detail: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	// A request runs to completion even if the client goes away.
	resp, err := s.runner.Run(context.WithoutCancel(c.Request.Context()), req)
	if err != nil {
		c.JSON(statusFor(err), models.ErrorResponse{Detail: err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func statusFor(err error) int {
	var fetchErr *pipeline.FetchError
	if errors.As(err, &fetchErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic while handling request",
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{Detail: "internal server error"})
	})
}
