package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sbhat05/Gmail-Calender-Scheduler/internal/dedup"
)

// Server exposes health, metrics and run statistics over HTTP
type Server struct {
	store     dedup.Store
	startedAt time.Time
}

// New creates the HTTP surface
func New(store dedup.Store) *Server {
	return &Server{store: store, startedAt: time.Now()}
}

// Router builds the gin router
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.health)
	router.GET("/stats", s.stats)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"mails_processed": s.store.Count(),
		"uptime":          time.Since(s.startedAt).String(),
	})
}
