package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

const revokedKeyPrefix = "carenest:revoked:"

// RedisRevocationStore shares revocations across replicas. Calls go
// through a circuit breaker; while Redis is unavailable the store answers
// from a local mirror of the revocations this replica has seen.
type RedisRevocationStore struct {
	client  redis.UniversalClient
	breaker *gobreaker.CircuitBreaker
	local   *MemoryRevocationStore
	now     func() time.Time
}

func NewRedisRevocationStore(client redis.UniversalClient, local *MemoryRevocationStore) *RedisRevocationStore {
	settings := gobreaker.Settings{
		Name:        "revocation-redis",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("circuit_breaker", name).
				Str("from_state", from.String()).
				Str("to_state", to.String()).
				Msg("circuit breaker state changed")
		},
	}
	return &RedisRevocationStore{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		local:   local,
		now:     time.Now,
	}
}

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	_ = s.local.Revoke(ctx, jti, expiresAt)

	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.client.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("revoke token in redis: %w", err)
	}
	return nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if revoked, _ := s.local.IsRevoked(ctx, jti); revoked {
		return true, nil
	}
	res, err := s.breaker.Execute(func() (interface{}, error) {
		return s.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return false, nil
		}
		return false, fmt.Errorf("check revocation in redis: %w", err)
	}
	n, _ := res.(int64)
	return n > 0, nil
}

func (s *RedisRevocationStore) State() gobreaker.State {
	return s.breaker.State()
}
