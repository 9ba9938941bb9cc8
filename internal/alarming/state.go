package alarming

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/smukkama/weather-monitor/internal/weather"
)

const keyPrefix = "alert_state:"

// storedState is the Redis value for one counter.
type storedState struct {
	City      string            `json:"city"`
	Kind      weather.AlertKind `json:"kind"`
	Count     int               `json:"count"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// StateClient is the part of the Redis client used for checkpoints.
// *redis.Client satisfies it.
type StateClient interface {
	Pipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// StateManager checkpoints debouncer counters in Redis so a restart resumes
// breach runs instead of starting every city from zero.
type StateManager struct {
	redis StateClient
	ttl   time.Duration
	clock clockwork.Clock
}

// NewStateManager creates a new state manager. Keys expire after ttl without
// updates. A nil clock uses the real clock.
func NewStateManager(client StateClient, ttl time.Duration, clock clockwork.Clock) *StateManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StateManager{redis: client, ttl: ttl, clock: clock}
}

// StateKey returns the Redis key for a city and alert kind.
func StateKey(city string, kind weather.AlertKind) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, city, strings.ReplaceAll(string(kind), " ", "_"))
}

// SaveStates writes the given counters. A zero counter deletes its key.
func (sm *StateManager) SaveStates(ctx context.Context, states []State) error {
	if len(states) == 0 {
		return nil
	}

	now := sm.clock.Now().UTC()
	_, err := sm.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, s := range states {
			key := StateKey(s.City, s.Kind)
			if s.Count == 0 {
				pipe.Del(ctx, key)
				continue
			}

			data, err := json.Marshal(storedState{City: s.City, Kind: s.Kind, Count: s.Count, UpdatedAt: now})
			if err != nil {
				return fmt.Errorf("failed to marshal state: %w", err)
			}
			pipe.Set(ctx, key, data, sm.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save states in Redis: %w", err)
	}
	return nil
}

// LoadStates reads every checkpointed counter.
func (sm *StateManager) LoadStates(ctx context.Context) ([]State, error) {
	var states []State

	iter := sm.redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := sm.redis.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			// expired between SCAN and GET
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get state from Redis: %w", err)
		}

		var s storedState
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state %s: %w", iter.Val(), err)
		}
		states = append(states, State{City: s.City, Kind: s.Kind, Count: s.Count})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan states: %w", err)
	}

	return states, nil
}

