package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/investours/backend/internal/config"
)

const (
	clickDedupePrefix = "gfe:click:"
	leaderboardKey    = "gfe:leaderboard"
	clickDedupeWindow = 10 * time.Minute
	leaderboardTTL    = 5 * time.Minute
)

// Store is an explicitly constructed Redis handle injected into the
// services that need it. It only ever holds non-authoritative data
// (dedupe markers, display caches); losing it never loses ledger state.
type Store struct {
	client *redis.Client
}

// NewStore creates a Redis store from configuration
func NewStore(cfg config.RedisConfig) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Store{client: client}, nil
}

// Close releases the underlying client
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// SeenClick reports whether this visitor already registered a click for
// the referral code inside the dedupe window, marking it if not.
func (s *Store) SeenClick(ctx context.Context, referralCode, visitorKey string) (bool, error) {
	if s == nil || s.client == nil || visitorKey == "" {
		return false, nil
	}
	key := clickDedupePrefix + referralCode + ":" + visitorKey
	set, err := s.client.SetNX(ctx, key, 1, clickDedupeWindow).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check click dedupe: %w", err)
	}
	return !set, nil
}

// CacheLeaderboard stores a serialized leaderboard snapshot
func (s *Store) CacheLeaderboard(ctx context.Context, entries interface{}) error {
	if s == nil || s.client == nil {
		return nil
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal leaderboard: %w", err)
	}
	return s.client.Set(ctx, leaderboardKey, data, leaderboardTTL).Err()
}

// GetLeaderboard loads a cached leaderboard snapshot into dest,
// returning false on a miss.
func (s *Store) GetLeaderboard(ctx context.Context, dest interface{}) (bool, error) {
	if s == nil || s.client == nil {
		return false, nil
	}
	data, err := s.client.Get(ctx, leaderboardKey).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read leaderboard cache: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}
