// Package transport owns the WebSocket boundary: accepting upgrades,
// pumping frames in and out, and handing decoded traffic to the session
// coordinator. It knows nothing about rooms beyond the Coordinator
// interface.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/beamcast-io/beamcast/server/go/internal/v1/logging"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/metrics"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/ratelimit"
	"github.com/beamcast-io/beamcast/server/go/internal/v1/types"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Gateway accepts WebSocket upgrades and wires each connection to the
// session coordinator.
type Gateway struct {
	coordinator    types.Coordinator      // Session layer that owns rooms and routing
	rateLimiter    *ratelimit.RateLimiter // Per-IP connection limiter
	allowedOrigins []string               // Browser origins allowed to connect
	devMode        bool                   // Skip origin checks in development mode
}

// NewGateway creates a Gateway and configures it with its dependencies.
func NewGateway(coordinator types.Coordinator, rateLimiter *ratelimit.RateLimiter, allowedOrigins []string, devMode bool) *Gateway {
	return &Gateway{
		coordinator:    coordinator,
		rateLimiter:    rateLimiter,
		allowedOrigins: allowedOrigins,
		devMode:        devMode,
	}
}

// ServeWs validates the request and upgrades it to a WebSocket connection.
func (g *Gateway) ServeWs(c *gin.Context) {
	// 0. Rate limiting check (IP based first)
	// We check this before anything else to save resources
	if !g.rateLimiter.CheckWebSocket(c) {
		return // Response already written by CheckWebSocket
	}

	// 1. Origin validation (pure logic + Gin bridge)
	if !g.devMode {
		if err := validateOrigin(c.Request, g.allowedOrigins); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
			return
		}
	}

	// 2. Upgrade to WebSocket (isolated I/O glue)
	conn, err := g.upgradeWebSocket(c)
	if err != nil {
		return
	}

	// 3. Setup and start (orchestration logic)
	g.HandleConnection(c, conn)
}

// HandleConnection takes an established WebSocket connection, registers it
// with the coordinator and starts the message pumps.
func (g *Gateway) HandleConnection(c *gin.Context, conn wsConnection) {
	// The request context carries the correlation ID planted by middleware;
	// detach it from request cancellation so it survives the upgrade.
	client := newClient(context.WithoutCancel(c.Request.Context()), conn, g.coordinator)

	logging.Info(client.ctx, "Client connected",
		zap.String("clientId", string(client.GetID())),
		zap.String("remoteAddr", c.ClientIP()))

	// Track metrics
	metrics.IncConnection()

	// Register with the coordinator (pushes the room directory)
	g.coordinator.HandleClientConnect(client.ctx, client)

	// Start message pumps
	go client.writePump()
	go client.readPump()
}

// validateOrigin checks if the request origin is in the allowed list.
func validateOrigin(r *http.Request, allowedOrigins []string) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.GetLogger().Debug("No origin header - allowing non-browser client")
		return nil // Allow non-browser clients (e.g., for testing)
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		logging.Warn(context.Background(), "Invalid origin URL", zap.String("origin", origin), zap.Error(err))
		return fmt.Errorf("invalid origin URL: %w", err)
	}

	for _, allowed := range allowedOrigins {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		// Check if the scheme and host match
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			logging.GetLogger().Debug("Origin validated", zap.String("origin", origin))
			return nil
		}
	}

	logging.Warn(context.Background(), "Origin not in allowed list", zap.String("origin", origin), zap.Strings("allowedOrigins", allowedOrigins))
	return fmt.Errorf("origin not allowed: %s", origin)
}

// upgradeWebSocket handles the WebSocket upgrade process.
func (g *Gateway) upgradeWebSocket(c *gin.Context) (wsConnection, error) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if g.devMode {
				return true
			}
			return validateOrigin(r, g.allowedOrigins) == nil
		},
		WriteBufferPool: &sync.Pool{
			New: func() any {
				return make([]byte, 4096)
			},
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to upgrade connection", zap.Error(err))
		return nil, err
	}

	return conn, nil
}
