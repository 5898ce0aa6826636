// Package bus publishes room lifecycle events to Redis for ops tooling
// (dashboards, audit tails). It is strictly one-way: nothing is ever
// subscribed back into the hub, so a Redis outage can only cost telemetry,
// never signaling.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/beamcast-io/beamcast/server/go/internal/v1/metrics"
)

// EventsChannel is the pub/sub channel carrying every room lifecycle event.
const EventsChannel = "beamcast:rooms:events"

// Room lifecycle event names.
const (
	EventRoomCreated = "room-created"
	EventRoomEmptied = "room-emptied"
	EventRoomDeleted = "room-deleted"
	EventPeerJoined  = "peer-joined"
	EventPeerLeft    = "peer-left"
)

// RoomEvent is the JSON envelope published for each lifecycle change.
type RoomEvent struct {
	Event        string `json:"event"`
	RoomID       string `json:"roomId"`
	RoomName     string `json:"roomName,omitempty"`
	Role         string `json:"role,omitempty"`
	Participants int    `json:"participants"`
	Timestamp    int64  `json:"timestamp"` // Unix millis, set by the publisher
}

// Service handles all interaction with Redis. A nil *Service is valid and
// means single-instance mode: every method becomes a no-op.
type Service struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// Client returns the underlying Redis client, nil in single-instance mode.
// The rate limiter reuses it for its store.
func (s *Service) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// NewService connects to Redis and verifies the connection before returning.
func NewService(addr, password string) (*Service, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "feed",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateVal)
		},
	}

	slog.Info("Connected to Redis room event feed", "addr", addr)
	return &Service{
		client: rdb,
		cb:     gobreaker.NewCircuitBreaker(st),
	}, nil
}

// PublishRoomEvent emits one lifecycle event. Failures degrade gracefully:
// an open circuit breaker drops the event and returns nil so the signaling
// path never blocks on telemetry.
func (s *Service) PublishRoomEvent(ctx context.Context, event RoomEvent) error {
	if s == nil || s.client == nil {
		return nil // Single-instance mode, no Redis available
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	_, err := s.cb.Execute(func() (interface{}, error) {
		data, err := json.Marshal(event)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal room event: %w", err)
		}
		return nil, s.client.Publish(ctx, EventsChannel, data).Err()
	})

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("feed").Inc()
			slog.Warn("Feed circuit breaker open: dropping room event", "event", event.Event, "roomID", event.RoomID)
			return nil // Graceful degradation: drop event, don't crash caller
		}
		slog.Error("Room event publish failed", "event", event.Event, "roomID", event.RoomID, "error", err)
		return err
	}

	metrics.FeedEventsPublished.WithLabelValues(event.Event).Inc()
	return nil
}

// Ping checks Redis connectivity using the PING command.
// Used by health checks to verify the feed is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil // Single-instance mode, no Redis available
	}

	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("feed").Inc()
		}
		return err
	}
	return nil
}

// Close gracefully shuts down the Redis connection
func (s *Service) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
