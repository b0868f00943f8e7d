package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/marinewatch/maritime-backend/internal/config"
	"github.com/marinewatch/maritime-backend/internal/metrics"
	"github.com/marinewatch/maritime-backend/internal/notify"
	"github.com/marinewatch/maritime-backend/internal/repository"
	"github.com/marinewatch/maritime-backend/internal/voyage"
	"github.com/marinewatch/maritime-backend/pkg/utils"
)

// Server HTTP сервер API
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	logger      *utils.Logger
	config      *config.Config
	restHandler *RESTHandler
	wsHandler   *WebSocketHandler
}

// NewServer создает новый HTTP сервер
func NewServer(cfg *config.Config, store repository.HistoryStore, live repository.LiveRepository,
	tracker *voyage.Tracker, notifier *notify.Service, logger *utils.Logger) *Server {

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(LoggerMiddleware(logger))
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware())
	router.Use(RateLimitMiddleware())
	if cfg.Monitoring.MetricsEnabled {
		router.Use(metrics.HTTPMetricsMiddleware())
	}

	routes := voyage.NewRouteBuilder(store, &cfg.Voyage)
	restHandler := NewRESTHandler(
		tracker,
		routes,
		voyage.NewReplayGenerator(routes),
		voyage.NewStatistics(routes),
		store,
		live,
		notifier,
		logger,
	)
	wsHandler := NewWebSocketHandler(logger)

	// Живые обновления позиций уходят всем WebSocket подписчикам
	tracker.Subscribe(wsHandler.BroadcastPosition)

	server := &Server{
		router:      router,
		logger:      logger,
		config:      cfg,
		restHandler: restHandler,
		wsHandler:   wsHandler,
	}

	server.httpServer = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	server.setupRoutes()

	return server
}

// setupRoutes настраивает маршруты API
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/positions", s.restHandler.PostPosition)
		v1.GET("/vessels/live", s.restHandler.GetLiveVessels)
		v1.GET("/vessels/:id/history", s.restHandler.GetVesselHistory)
		v1.GET("/vessels/:id/voyages", s.restHandler.GetVesselVoyages)
		v1.GET("/voyages/:id/route", s.restHandler.GetVoyageRoute)
		v1.GET("/voyages/:id/replay", s.restHandler.GetVoyageReplay)
		v1.GET("/voyages/:id/statistics", s.restHandler.GetVoyageStatistics)
		v1.POST("/voyages/:id/close", s.restHandler.CloseVoyage)
		v1.GET("/voyages/:id/audit-logs", s.restHandler.GetVoyageAuditLogs)
		v1.GET("/ports", s.restHandler.GetPorts)
		v1.POST("/subscriptions", s.restHandler.PostSubscription)
		v1.DELETE("/subscriptions", s.restHandler.DeleteSubscription)
		v1.GET("/notifications", s.restHandler.GetNotifications)
		v1.POST("/notifications/:id/read", s.restHandler.MarkNotificationRead)
	}

	s.router.GET("/ws/v1/updates", s.wsHandler.HandleWebSocket)

	if s.config.Monitoring.MetricsEnabled {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// Start запускает HTTP сервер
func (s *Server) Start() error {
	s.logger.WithFields(map[string]interface{}{
		"address": s.config.Server.Address,
		"mode":    gin.Mode(),
	}).Info("Starting HTTP server")

	return s.httpServer.ListenAndServe()
}

// Shutdown корректное завершение сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	s.wsHandler.Close()
	return s.httpServer.Shutdown(ctx)
}

// Router отдает роутер (для тестов)
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"version":   "1.0.0",
	})
}

// ==================== Middleware ====================

// LoggerMiddleware логирование запросов
func LoggerMiddleware(logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		logger.WithFields(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": latency.Milliseconds(),
			"client_ip":  c.ClientIP(),
		}).Info("HTTP request completed")
	}
}

// CORSMiddleware настройка CORS
func CORSMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// RateLimitMiddleware ограничение частоты запросов
func RateLimitMiddleware() gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(100), 200)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    "rate_limit_exceeded",
				"message": "Too many requests",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
