package service

import (
	"context"
	"dorm_match_backend/internal/model"
	"dorm_match_backend/internal/repository"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	db         *gorm.DB
	users      *repository.UserRepository
	listings   *repository.ListingRepository
	requests   *repository.TenantRequestRepository
	tenants    *repository.ListingTenantRepository
	cache      *CacheService
	requestSvc *TenantRequestService
	notifySvc  *NotificationService
	clock      *fakeClock
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

// Now advances one second per call so updated_at ordering is deterministic.
func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestDB(t *testing.T) *gorm.DB {
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithCache(t, NewCacheService(nil, 0))
}

// newRedisCache starts an in-process Redis for the test.
func newRedisCache(t *testing.T) (*CacheService, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewCacheService(rdb, time.Minute), mr
}

func newTestEnvWithCache(t *testing.T, cache *CacheService) *testEnv {
	db := newTestDB(t)
	env := &testEnv{
		db:       db,
		users:    repository.NewUserRepository(db),
		listings: repository.NewListingRepository(db),
		requests: repository.NewTenantRequestRepository(db),
		tenants:  repository.NewListingTenantRepository(db),
		cache:    cache,
		clock:    &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	env.requestSvc = NewTenantRequestService(db, env.requests, env.tenants, env.listings, env.cache)
	env.requestSvc.Now = env.clock.Now
	env.notifySvc = NewNotificationService(env.requests, env.cache)
	return env
}

func (e *testEnv) user(t *testing.T, name string, role model.UserRole) *model.User {
	u := &model.User{Name: name, Email: name + "@example.com", Password: "x", Role: role}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *testEnv) listing(t *testing.T, owner *model.User, maxOccupants int) *model.Listing {
	l := &model.Listing{
		ListerID:     owner.ID,
		Title:        fmt.Sprintf("%s's room", owner.Name),
		City:         "Austin",
		RentCents:    80000,
		MaxOccupants: maxOccupants,
		Status:       model.ListingActive,
	}
	require.NoError(t, e.listings.Create(context.Background(), l))
	return l
}

func (e *testEnv) reload(t *testing.T, id string) *model.TenantRequest {
	var r model.TenantRequest
	require.NoError(t, e.db.First(&r, "id = ?", id).Error)
	return &r
}

func (e *testEnv) countRequests(t *testing.T, listingID string, requesterID uint) int64 {
	var n int64
	require.NoError(t, e.db.Model(&model.TenantRequest{}).
		Where("listing_id = ? AND requester_id = ?", listingID, requesterID).Count(&n).Error)
	return n
}
