// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api exposes a bridge Module over HTTP and a websocket event
// stream, plus an admin router for health and metrics.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luxfi/adbridge/pkg/ads"
	"github.com/luxfi/adbridge/pkg/analytics"
	"github.com/luxfi/adbridge/pkg/bridge"
	"github.com/luxfi/adbridge/pkg/log"
	"github.com/luxfi/adbridge/pkg/metric"
)

// Config tunes the HTTP surface
type Config struct {
	Environment string
	CORSOrigins []string
	RateLimit   float64
	RateBurst   int
}

// Server serves one bridge Module
type Server struct {
	module  *bridge.Module
	tracker *analytics.Tracker
	metrics *metric.Metrics
	limiter *RateLimiter
	cfg     Config
	log     log.Logger
	started time.Time
}

// NewServer creates a server. tracker and metrics may be nil.
func NewServer(module *bridge.Module, tracker *analytics.Tracker, metrics *metric.Metrics, logger log.Logger, cfg Config) *Server {
	return &Server{
		module:  module,
		tracker: tracker,
		metrics: metrics,
		limiter: NewRateLimiter(cfg.RateLimit, cfg.RateBurst, logger),
		cfg:     cfg,
		log:     logger,
		started: time.Now(),
	}
}

// Limiter returns the per-client rate limiter
func (s *Server) Limiter() *RateLimiter {
	return s.limiter
}

// Router builds the public gin engine
func (s *Server) Router() *gin.Engine {
	if s.cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.observe())

	// CORS configuration
	config := cors.DefaultConfig()
	if len(s.cfg.CORSOrigins) == 0 || (len(s.cfg.CORSOrigins) == 1 && s.cfg.CORSOrigins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = s.cfg.CORSOrigins
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(config))

	router.GET("/ws/events", s.streamEvents)

	api := router.Group("/api/v1", s.limiter.Middleware())
	{
		// SDK
		api.POST("/sdk/init", s.initSDK)
		api.GET("/sdk/status", s.sdkStatus)
		api.PUT("/sdk/environment", s.setEnvironment)

		// Privacy and targeting
		api.GET("/privacy", s.getPrivacy)
		api.PUT("/privacy", s.setPrivacy)
		api.PUT("/targeting", s.setTargeting)
		api.DELETE("/targeting", s.clearTargeting)

		// Ads
		api.GET("/ads", s.listAds)
		api.POST("/ads/:type", s.createAd)
		api.POST("/ads/:type/:id/load", s.loadAd)
		api.POST("/ads/:type/:id/show", s.showAd)
		api.POST("/ads/:type/:id/hide", s.hideAd)
		api.POST("/ads/:type/:id/autorefresh", s.autoRefresh)
		api.GET("/ads/:type/:id/ready", s.isReady)
		api.DELETE("/ads/:id", s.destroyAd)

		// Reporting
		api.GET("/stats", s.stats)
	}

	return router
}

// observe counts processed requests by method and status
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if s.metrics != nil {
			s.metrics.RequestsProcessed.WithLabelValues(c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		}
	}
}

// AdminRouter serves health and Prometheus metrics
func (s *Server) AdminRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.GetGatherer(), promhttp.HandlerOpts{})).Methods("GET")
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "healthy",
		"initialized": s.module.IsInitialized(),
		"version":     s.module.Version(),
		"uptime":      time.Since(s.started).Round(time.Second).String(),
		"time":        time.Now().Unix(),
	})
}

// badRequest marks request validation failures
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

// statusFor maps bridge errors onto HTTP status codes
func statusFor(err error) int {
	var bad badRequest
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, ads.ErrDuplicateIdentifier):
		return http.StatusConflict
	case errors.Is(err, ads.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ads.ErrInvalidAdType),
		errors.Is(err, ads.ErrInvalidIdentifier),
		errors.Is(err, bridge.ErrMissingPlacement),
		errors.Is(err, bridge.ErrMissingAppKey):
		return http.StatusBadRequest
	case errors.Is(err, ads.ErrNotInitialized):
		return http.StatusPreconditionFailed
	case errors.Is(err, ads.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			log.String("path", c.FullPath()),
			log.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
