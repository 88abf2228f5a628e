package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cuemby/remindsync/pkg/fanout"
	"github.com/cuemby/remindsync/pkg/log"
	"github.com/cuemby/remindsync/pkg/types"
)

// Server is the device registration HTTP API of the fanout service
type Server struct {
	engine   *gin.Engine
	registry fanout.Registry
	health   *HealthServer
	now      func() time.Time
	logger   zerolog.Logger
	http     *http.Server
}

// DeviceRequest is the body of a registration upsert
type DeviceRequest struct {
	FCMToken string         `json:"fcmToken" binding:"required"`
	Platform types.Platform `json:"platform" binding:"required"`
}

// NewServer creates the API server. health provides /health, /ready and
// /metrics.
func NewServer(registry fanout.Registry, health *HealthServer) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:   gin.New(),
		registry: registry,
		health:   health,
		now:      time.Now,
		logger:   log.WithComponent("api"),
	}

	s.http = newHTTPServer(s.engine)
	s.engine.Use(gin.Recovery(), RequestLogger(s.logger), RequestMetrics())

	v1 := s.engine.Group("/v1")
	v1.PUT("/users/:uid/devices/:deviceId", s.putDevice)
	v1.DELETE("/users/:uid/devices/:deviceId", s.deleteDevice)

	if health != nil {
		h := gin.WrapH(health.GetHandler())
		s.engine.GET("/health", h)
		s.engine.GET("/ready", h)
		s.engine.GET("/metrics", h)
	}

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves on addr and blocks until Shutdown
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("HTTP API listening")
	return serve(s.http, addr)
}

// Shutdown gracefully stops the server, including one that has not started
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// putDevice upserts a registration and marks it active now
func (s *Server) putDevice(c *gin.Context) {
	var req DeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Platform {
	case types.PlatformIOS, types.PlatformAndroid, types.PlatformWeb:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown platform: " + string(req.Platform)})
		return
	}

	userID := c.Param("uid")
	device := types.DeviceRegistration{
		DeviceID:     c.Param("deviceId"),
		FCMToken:     req.FCMToken,
		Platform:     req.Platform,
		LastActiveAt: s.now().UTC(),
	}

	if err := s.registry.Upsert(c.Request.Context(), userID, device); err != nil {
		if errors.Is(err, fanout.ErrInvalidDevice) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to register device")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register device"})
		return
	}

	log.WithDeviceID(device.DeviceID).Debug().
		Str("user_id", userID).
		Str("platform", string(device.Platform)).
		Msg("Device registered")
	c.JSON(http.StatusOK, device)
}

// deleteDevice removes a registration. Unknown devices are not an error.
func (s *Server) deleteDevice(c *gin.Context) {
	userID := c.Param("uid")
	if err := s.registry.Delete(c.Request.Context(), userID, c.Param("deviceId")); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to delete device")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete device"})
		return
	}
	c.Status(http.StatusNoContent)
}
