package service

import (
	"context"
	"dorm_match_backend/pkg/logger"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func ListerNotificationsKey(listerID uint) string {
	return fmt.Sprintf("dm:notifications:lister:%d", listerID)
}

func StudentNotificationsKey(requesterID uint) string {
	return fmt.Sprintf("dm:notifications:student:%d", requesterID)
}

func NotificationCountsKey(userID uint) string {
	return fmt.Sprintf("dm:notifications:counts:%d", userID)
}

func ProfileKey(userID uint) string {
	return fmt.Sprintf("dm:profile:%d", userID)
}

func ListingKey(listingID string) string {
	return "dm:listing:" + listingID
}

// CacheService is a keyed read-through cache in front of the store. The
// store stays the source of truth: with a nil client every call passes
// straight through, and Redis failures are logged and ignored.
type CacheService struct {
	Redis *redis.Client
	TTL   time.Duration
}

func NewCacheService(rdb *redis.Client, ttl time.Duration) *CacheService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CacheService{Redis: rdb, TTL: ttl}
}

func (s *CacheService) enabled() bool {
	return s != nil && s.Redis != nil
}

// Seed stores value under key.
func (s *CacheService) Seed(ctx context.Context, key string, value interface{}) {
	if !s.enabled() {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		logger.Log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.Redis.Set(ctx, key, data, s.TTL).Err(); err != nil {
		logger.Log.Warn("cache seed failed", zap.String("key", key), zap.Error(err))
	}
}

// Fetch decodes the cached value of key into dest. On a miss it calls loader,
// seeds the cache with the result and decodes that instead.
func (s *CacheService) Fetch(ctx context.Context, key string, dest interface{}, loader func(ctx context.Context) (interface{}, error)) error {
	if s.enabled() {
		data, err := s.Redis.Get(ctx, key).Bytes()
		if err == nil {
			if jsonErr := json.Unmarshal(data, dest); jsonErr == nil {
				return nil
			}
			logger.Log.Warn("cache entry unreadable, reloading", zap.String("key", key))
		} else if !errors.Is(err, redis.Nil) {
			logger.Log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	value, err := loader(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if s.enabled() {
		if err := s.Redis.Set(ctx, key, data, s.TTL).Err(); err != nil {
			logger.Log.Warn("cache seed failed", zap.String("key", key), zap.Error(err))
		}
	}
	return json.Unmarshal(data, dest)
}

// Invalidate drops keys so the next Fetch reloads from the store.
func (s *CacheService) Invalidate(ctx context.Context, keys ...string) {
	if !s.enabled() || len(keys) == 0 {
		return
	}
	if err := s.Redis.Del(ctx, keys...).Err(); err != nil {
		logger.Log.Warn("cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// OptimisticPatch applies patch to the cached JSON object under key, then
// runs commit. If commit fails the previous value is put back and the commit
// error is returned. A missing entry, or one that is not a JSON object, is not
// patched.
func (s *CacheService) OptimisticPatch(ctx context.Context, key string, patch map[string]interface{}, commit func(ctx context.Context) error) error {
	if !s.enabled() {
		return commit(ctx)
	}

	prev, err := s.Redis.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		prev = nil
	case err != nil:
		logger.Log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		prev = nil
	}

	if prev != nil {
		var obj map[string]interface{}
		// a cached null decodes to a nil map and is left alone
		if err := json.Unmarshal(prev, &obj); err == nil && obj != nil {
			for k, v := range patch {
				obj[k] = v
			}
			if patched, err := json.Marshal(obj); err == nil {
				s.Redis.Set(ctx, key, patched, s.TTL)
			}
		}
	}

	if err := commit(ctx); err != nil {
		if prev != nil {
			if rbErr := s.Redis.Set(ctx, key, prev, s.TTL).Err(); rbErr != nil {
				logger.Log.Warn("cache rollback failed", zap.String("key", key), zap.Error(rbErr))
				s.Redis.Del(ctx, key)
			}
		}
		return err
	}
	return nil
}
