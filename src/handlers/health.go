package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// HealthHandler handles health check requests
type HealthHandler struct {
	service string
	version string
	checks  map[string]HealthCheck
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service, version string, checks map[string]HealthCheck) *HealthHandler {
	if checks == nil {
		checks = map[string]HealthCheck{}
	}
	return &HealthHandler{
		service: service,
		version: version,
		checks:  checks,
	}
}

// runChecks probes every dependency and reports per-dependency status
func (hh *HealthHandler) runChecks(ctx context.Context) (gin.H, bool) {
	names := make([]string, 0, len(hh.checks))
	for name := range hh.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := gin.H{}
	healthy := true
	for _, name := range names {
		start := time.Now()
		if err := hh.checks[name](ctx); err != nil {
			healthy = false
			results[name] = gin.H{"status": "disconnected", "error": err.Error()}
			continue
		}
		results[name] = gin.H{"status": "connected", "latency": time.Since(start).String()}
	}
	return results, healthy
}

// HandleHealth returns health status with dependency checks
func (hh *HealthHandler) HandleHealth(c *gin.Context) {
	deps, healthy := hh.runChecks(c.Request.Context())

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":       "unhealthy",
			"dependencies": deps,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"dependencies": deps,
		"uptime":       time.Since(startTime).String(),
	})
}

// HandleInfo returns service information
func (hh *HealthHandler) HandleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": hh.service,
		"version": hh.version,
		"status":  "running",
		"uptime":  time.Since(startTime).String(),
	})
}

// HandleReady returns readiness status (for load balancers)
func (hh *HealthHandler) HandleReady(c *gin.Context) {
	if _, healthy := hh.runChecks(c.Request.Context()); !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}
