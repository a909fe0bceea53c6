package api

import (
	"net/http"
	"time"

	"tradectl/internal/engine"
	"tradectl/internal/events"
	"tradectl/internal/monitor"
	"tradectl/pkg/db"

	"github.com/gin-gonic/gin"
)

// Server wires HTTP endpoints around the trading engine and the event bus.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	Engine    *engine.Engine
	Queries   *db.Queries
	Metrics   *monitor.SystemMetrics
	JWTSecret string
	Meta      SystemMeta
}

// SystemMeta describes runtime status exposed to the UI.
type SystemMeta struct {
	DryRun      bool
	Symbols     []string
	UseMockFeed bool
	Version     string
}

func NewServer(bus *events.Bus, eng *engine.Engine, queries *db.Queries, metrics *monitor.SystemMetrics, meta SystemMeta, jwtSecret string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())        // Panic recovery (first)
	r.Use(RequestIDMiddleware()) // Request ID tracking
	r.Use(RequestLogger(metrics))
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware()) // CORS (last before routes)

	s := &Server{
		Router:    r,
		Bus:       bus,
		Engine:    eng,
		Queries:   queries,
		Metrics:   metrics,
		JWTSecret: jwtSecret,
		Meta:      meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.getSystemStatus)
		api.GET("/monitor/metrics", s.getMonitorMetrics)

		// Auth endpoints (no auth required)
		auth := api.Group("/auth")
		{
			auth.POST("/register", s.registerUser)
			auth.POST("/login", s.loginUser)
		}

		// Protected API
		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/positions", s.getPositions)
			protected.GET("/metrics/portfolio", s.getPortfolioMetrics)
			protected.GET("/cooldowns", s.getCooldowns)
			protected.GET("/cooldowns/report", s.getCooldownReport)
			protected.GET("/transactions", s.getTransactions)
			protected.GET("/decisions", s.getDecisions)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
