// Package health serves the liveness endpoint probed by hosting providers.
package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Response is the body of GET /health.
type Response struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
}

// NewRouter returns a router exposing only GET /health; every other path is a 404.
func NewRouter(service string, now func() time.Time) *gin.Engine {
	if now == nil {
		now = time.Now
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, Response{
			Status:    "ok",
			Timestamp: now().UTC().Format(time.RFC3339Nano),
			Service:   service,
		})
	})
	router.NoRoute(func(c *gin.Context) {
		c.String(http.StatusNotFound, "Not Found")
	})
	return router
}

// Server runs the health router until Shutdown.
type Server struct {
	srv    *http.Server
	logger *logrus.Entry
}

func NewServer(port, service string, logger *logrus.Entry) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              "0.0.0.0:" + port,
			Handler:           NewRouter(service, nil),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger.WithField("addr", "0.0.0.0:"+port),
	}
}

// Start serves in a goroutine. A listen failure is logged; it does not stop monitoring.
func (s *Server) Start() {
	go func() {
		s.logger.Info("Health check server starting")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("Health check server error")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
