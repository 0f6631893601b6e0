// Package adminapi exposes a small read-only HTTP surface over the
// coordinator's state: health, an NS record plus its in-flight task
// snapshot, and prometheus metrics. It replaces the original's "ns
// show"/"ns list" stdout dumps with a servable endpoint, styled after
// cn-dms's router setup (recovery/security-headers/rate-limiting/
// logging middleware chain, gin.ReleaseMode by default).
package adminapi

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/db"
	"github.com/thc1006/O-RAN-Intent-MANO-for-Network-Slicing/internal/registry"
)

// Server bundles the collaborators the admin endpoints read from.
type Server struct {
	Db       db.Db
	Registry *registry.Registry
	Log      *logrus.Entry
	Debug    bool
}

// Router builds the gin engine. Debug controls gin's run mode; set it
// from the same logging.level the rest of the process uses.
func (s *Server) Router() *gin.Engine {
	if s.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(s.recoveryMiddleware())
	router.Use(securityHeadersMiddleware())
	router.Use(rateLimitingMiddleware())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{SkipPaths: []string{"/healthz"}}))

	router.GET("/healthz", s.healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/ns/:id", s.getNs)
		v1.GET("/vim_accounts/:id", s.getVim)
		v1.GET("/sdns/:id", s.getSdn)
		v1.GET("/tasks", s.getTasks)
	}

	return router
}

func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(os.Stderr, func(c *gin.Context, recovered interface{}) {
		s.Log.WithField("panic", recovered).Error("adminapi: panic recovered")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	})
}

func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

func rateLimitingMiddleware() gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(50), 100)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) getNs(c *gin.Context) {
	id := c.Param("id")
	nsr, err := s.Db.GetOne(c.Request.Context(), "nsrs", map[string]interface{}{"_id": id})
	if err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("ns %s not found", id)})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ns":    nsr,
		"tasks": s.Registry.Snapshot("ns", id),
	})
}

func (s *Server) getVim(c *gin.Context) {
	id := c.Param("id")
	vim, err := s.Db.GetOne(c.Request.Context(), "vim_accounts", map[string]interface{}{"_id": id})
	if err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("vim_account %s not found", id)})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"vim_account": vim,
		"tasks":       s.Registry.Snapshot("vim_account", id),
	})
}

func (s *Server) getSdn(c *gin.Context) {
	id := c.Param("id")
	sdn, err := s.Db.GetOne(c.Request.Context(), "sdns", map[string]interface{}{"_id": id})
	if err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("sdn %s not found", id)})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sdn":   sdn,
		"tasks": s.Registry.Snapshot("sdn", id),
	})
}

func (s *Server) getTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"active_tasks": s.Registry.Count()})
}
