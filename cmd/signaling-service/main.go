package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	callTable "signalrelay-backend/internal/calls"
	wsHandler "signalrelay-backend/internal/handler/ws"
	"signalrelay-backend/internal/middleware"
	"signalrelay-backend/internal/registry"
	signalingService "signalrelay-backend/internal/service/signaling"
	"signalrelay-backend/pkg/constants"
	"signalrelay-backend/pkg/env"
	"signalrelay-backend/pkg/logger"
	"signalrelay-backend/pkg/metrics"
)

func main() {
	// 1. Initialize logger
	logger.InitDefault()
	defer logger.Sync()

	// 2. Initialize Metrics
	appMetrics := metrics.NewMetrics("signaling-service")
	prometheusMiddleware := middleware.NewPrometheusMiddleware(appMetrics)

	// 3. Initialize signaling core
	connRegistry := registry.New()
	calls := callTable.New()
	graceWindow := env.GetDuration("CALL_GRACE_WINDOW", constants.DefaultCallGraceWindow)

	// 4. Initialize WebSocket transport and attach the router
	relayHub := wsHandler.NewRelayHub(appMetrics)
	signalingSvc := signalingService.NewService(connRegistry, calls, relayHub, appMetrics, graceWindow)
	relayHub.SetRouter(signalingSvc)

	// 5. Setup Gin Router
	if os.Getenv("ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New() // Don't use Default() to have full control

	// Apply global middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddleware())
	router.Use(prometheusMiddleware.Handler())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "signaling-service",
			"time":    time.Now().UTC(),
		})
	})

	// Metrics endpoint (for Prometheus scraping)
	router.GET("/metrics", middleware.MetricsHandler(appMetrics))

	// WebSocket endpoint for WebRTC signaling
	router.GET("/ws", relayHub.ServeWS)

	// 6. Start server with graceful shutdown
	port := env.GetString("PORT", "8084")
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: router,
	}

	go func() {
		log.Printf("🚀 Signaling Service starting on port %s\n", port)
		log.Println("📡 WebRTC Signaling: /ws")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down signaling service...")
	ctx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
}
