package repository

import (
	"context"
	"dorm_match_backend/internal/model"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
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

func seedUser(t *testing.T, db *gorm.DB, name string, role model.UserRole) *model.User {
	u := &model.User{Name: name, Email: name + "@example.com", Password: "x", Role: role}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedListing(t *testing.T, db *gorm.DB, owner *model.User, maxOccupants int) *model.Listing {
	l := &model.Listing{ListerID: owner.ID, Title: "Room near campus", City: "Austin", RentCents: 90000, MaxOccupants: maxOccupants, Status: model.ListingActive}
	require.NoError(t, NewListingRepository(db).Create(context.Background(), l))
	return l
}
