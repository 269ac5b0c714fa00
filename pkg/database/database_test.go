package database

import (
	"dorm_match_backend/internal/config"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestDialector(t *testing.T) {
	d, err := dialector(&config.DatabaseConfig{Driver: config.DriverPostgres, Host: "db", Port: 5432})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = dialector(&config.DatabaseConfig{Driver: config.DriverMySQL, Host: "db", Port: 3306})
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())

	_, err = dialector(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestMigrate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every pooled connection would get its own empty :memory: database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, Migrate(db))

	for _, table := range []string{"users", "student_profiles", "listings", "listing_photos", "tenant_requests", "listing_tenants"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex("tenant_requests", "idx_tenant_requests_pair"))
	assert.True(t, db.Migrator().HasIndex("listing_tenants", "idx_listing_tenants_pair"))
}

func TestInitRedisDisabled(t *testing.T) {
	rdb, err := InitRedis(&config.RedisConfig{Enabled: false})
	assert.NoError(t, err)
	assert.Nil(t, rdb)
}
