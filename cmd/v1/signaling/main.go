package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	_ "go.uber.org/automaxprocs"

	"github.com/beamcast-io/beamcast/server/go/internal/v1/auth"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/bus"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/config"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/health"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/logging"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/middleware"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/ratelimit"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/session"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/tracing"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/transport"
)

func main() {
	// Load .env file for local development.
	// Try multiple paths to handle different ways of running the app
	envPaths := []string{".env", "../../../.env", "../../.env"}
	var envLoaded bool

	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("Loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		slog.Warn("No .env file found in any expected location, relying on environment variables")
	}

	// Validate environment variables before starting the server
	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("Environment validation failed", "error", err)
		os.Exit(1)
	}

	if cfg.DevelopmentMode {
		slog.Info("Running in DEVELOPMENT MODE")
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	// --- Tracing Initialization (Optional) ---
	var tracerProvider *sdktrace.TracerProvider
	if cfg.OtelEnabled {
		tp, err := tracing.InitTracer(context.Background(), "beamcast-signaling", cfg.OtelCollectorAddr)
		if err != nil {
			slog.Error("Failed to initialize tracing, continuing without it", "error", err)
		} else {
			tracerProvider = tp
			slog.Info("✅ OpenTelemetry tracing initialized", "collector", cfg.OtelCollectorAddr)
		}
	}

	// --- Redis Event Feed Initialization (Optional) ---
	// The feed publishes room lifecycle events for ops tooling. Losing it
	// never blocks signaling, so connection failure falls back cleanly.
	var feed *bus.Service
	if cfg.RedisEnabled {
		feed, err = bus.NewService(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			slog.Error("Failed to connect to Redis, running in single-instance mode", "error", err)
			feed = nil // Fallback to single-instance mode
		} else {
			slog.Info("✅ Redis room event feed initialized", "addr", cfg.RedisAddr)
		}
	} else {
		slog.Info("Running in single-instance mode (Redis disabled)")
	}

	// --- Rate Limiter ---
	// Reuses the feed's Redis client when present, so connect limits are
	// shared across replicas behind one load balancer.
	rateLimiter, err := ratelimit.NewRateLimiter(cfg, feed.Client())
	if err != nil {
		slog.Error("Failed to create rate limiter", "error", err)
		os.Exit(1)
	}

	// --- Create the Hub and its Gateway ---
	hub := session.NewHub(cfg, feed)

	allowedOrigins := auth.GetAllowedOriginsFromEnv("ALLOWED_ORIGINS", []string{"http://localhost:5173"})
	gateway := transport.NewGateway(hub, rateLimiter, allowedOrigins, cfg.DevelopmentMode)

	// --- Set up Server ---
	router := gin.Default()

	// Cors
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins
	router.Use(cors.New(corsConfig))

	// Correlation IDs for log stitching across the upgrade boundary
	router.Use(middleware.CorrelationID())

	if cfg.OtelEnabled && tracerProvider != nil {
		router.Use(otelgin.Middleware("beamcast-signaling"))
	}

	// Routing
	router.GET("/ws", gateway.ServeWs)

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoints
	healthHandler := health.NewHandler(feed)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	// Start the server.
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		var err error
		if cfg.TLSCertFile != "" {
			slog.Info("Signaling server starting (TLS)", "port", cfg.Port)
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			slog.Info("Signaling server starting", "port", cfg.Port)
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to run server", "error", err)
			syscall.Kill(os.Getpid(), syscall.SIGTERM)
		}
	}()

	// Wait for an interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	// The context is used to inform the server it has 30 seconds to finish
	// the requests it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Close all rooms and WebSocket connections gracefully; this also
	// flushes the event feed queue.
	if err := hub.Shutdown(ctx); err != nil {
		slog.Error("Error during Hub shutdown:", "error", err)
	}

	// Shutdown HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown:", "error", err)
	}

	// Close Redis connection if it was initialized
	if feed != nil {
		if err := feed.Close(); err != nil {
			slog.Error("Failed to close Redis connection:", "error", err)
		} else {
			slog.Info("Redis connection closed")
		}
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			slog.Error("Failed to shut down tracer provider:", "error", err)
		}
	}

	slog.Info("Server exiting")
}
