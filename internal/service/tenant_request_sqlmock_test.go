package service

import (
	"context"
	"dorm_match_backend/internal/repository"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	mockRequestID = "5b0c8f8e-8f5e-4c61-9a8e-2f0f3b1c7d11"
	mockListingID = "0e6f1f2a-54d3-4a53-8d55-3f0f9a1c2b22"
)

func newMockRequestService(t *testing.T) (*TenantRequestService, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	svc := NewTenantRequestService(db,
		repository.NewTenantRequestRepository(db),
		repository.NewListingTenantRepository(db),
		repository.NewListingRepository(db),
		NewCacheService(nil, 0))
	return svc, mock
}

func expectPendingRequestLoad(mock sqlmock.Sqlmock, listerID uint) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT \\* FROM `tenant_requests`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "listing_id", "requester_id", "status", "message", "read_at", "created_at", "updated_at"}).
			AddRow(mockRequestID, mockListingID, 42, "pending", "hi", nil, now, now))
	mock.ExpectQuery("SELECT \\* FROM `listings`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "lister_id", "title", "max_occupants", "status", "created_at", "updated_at"}).
			AddRow(mockListingID, listerID, "Loft", 3, "active", now, now))
}

func TestAccept_WritesTenancyBeforeStatus(t *testing.T) {
	svc, mock := newMockRequestService(t)

	expectPendingRequestLoad(mock, 7)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `listing_tenants`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `tenant_requests` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req, err := svc.Accept(context.Background(), mockRequestID, 7)
	require.NoError(t, err)
	assert.EqualValues(t, "accepted", req.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccept_StoreErrorIsReturnedVerbatim(t *testing.T) {
	svc, mock := newMockRequestService(t)
	storeErr := errors.New("connection reset by peer")

	expectPendingRequestLoad(mock, 7)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `listing_tenants`").WillReturnError(storeErr)
	mock.ExpectRollback()

	_, err := svc.Accept(context.Background(), mockRequestID, 7)
	require.Error(t, err)
	assert.Equal(t, "connection reset by peer", err.Error())
	// the status update never ran
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccept_LostRaceRollsBack(t *testing.T) {
	svc, mock := newMockRequestService(t)

	expectPendingRequestLoad(mock, 7)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `listing_tenants`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `tenant_requests` SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := svc.Accept(context.Background(), mockRequestID, 7)
	assert.EqualError(t, err, "This request has already been handled")
	assert.NoError(t, mock.ExpectationsWereMet())
}
