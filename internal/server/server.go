package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Server struct {
	Engine *gin.Engine
	Addr   string
	checks []namedCheck
}

// HealthChecker is an interface for components that can report their health status.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type namedCheck struct {
	name    string
	checker HealthChecker
}

func New(addr string, mode string) *Server {
	// Set Gin mode based on configuration
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	s := &Server{
		Engine: r,
		Addr:   addr,
	}

	// Health check endpoint verifying every registered dependency
	r.GET("/health", s.healthHandler)

	return s
}

// AddHealthCheck registers a dependency to verify on /health.
func (s *Server) AddHealthCheck(name string, checker HealthChecker) {
	s.checks = append(s.checks, namedCheck{name: name, checker: checker})
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	deps := gin.H{}
	for _, check := range s.checks {
		if err := check.checker.Ping(ctx); err != nil {
			slog.Error("Health check failed", "dependency", check.name, "error", err)
			deps[check.name] = "unreachable"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":       "unhealthy",
				"dependencies": deps,
			})
			return
		}
		deps[check.name] = "connected"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"dependencies": deps,
	})
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.Addr,
		Handler: s.Engine,
	}

	slog.Info("Starting HTTP Server...", "address", s.Addr)

	go func() {
		<-ctx.Done()
		slog.Info("Stopping HTTP Server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP Server forced to shutdown", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
