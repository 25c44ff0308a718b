package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mspr-sante/backend/config"
	"github.com/mspr-sante/backend/internal/api"
	"github.com/mspr-sante/backend/internal/kpi"
	"github.com/mspr-sante/backend/internal/middleware"
)

// Server hosts the KPI read API.
type Server struct {
	cfg    *config.Config
	router *gin.Engine
}

// New builds the HTTP server: middleware, the health probe and the
// versioned KPI routes.
func New(cfg *config.Config, db *gorm.DB, cache *redis.Client, log zerolog.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	engine := kpi.NewEngine(db, cfg)
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	kpiHandler := api.NewKPIHandler(engine, cache, ttl, log)

	v1 := router.Group("/api/v1")
	kpiHandler.RegisterRoutes(v1)

	return &Server{cfg: cfg, router: router}
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts listening on the configured port.
func (s *Server) Run() error {
	return s.router.Run(":" + s.cfg.ServerPort)
}
