package repository

import (
	"context"
	"dorm_match_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type TenantRequestRepository struct {
	DB *gorm.DB
}

func NewTenantRequestRepository(db *gorm.DB) *TenantRequestRepository {
	return &TenantRequestRepository{DB: db}
}

// WithTx returns a repository bound to tx.
func (r *TenantRequestRepository) WithTx(tx *gorm.DB) *TenantRequestRepository {
	return &TenantRequestRepository{DB: tx}
}

func (r *TenantRequestRepository) Create(ctx context.Context, req *model.TenantRequest) error {
	return r.DB.WithContext(ctx).Omit("Listing", "Requester").Create(req).Error
}

func (r *TenantRequestRepository) FindByID(ctx context.Context, id string) (*model.TenantRequest, error) {
	var req model.TenantRequest
	err := r.DB.WithContext(ctx).Preload("Listing").First(&req, "id = ?", id).Error
	return &req, err
}

func (r *TenantRequestRepository) FindByPair(ctx context.Context, listingID string, requesterID uint) (*model.TenantRequest, error) {
	var req model.TenantRequest
	err := r.DB.WithContext(ctx).
		Where("listing_id = ? AND requester_id = ?", listingID, requesterID).
		First(&req).Error
	return &req, err
}

// Reopen moves a rejected or removed row back to pending. It returns the
// number of rows changed, 0 means the row was no longer reopenable.
func (r *TenantRequestRepository) Reopen(ctx context.Context, id, message string, now time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&model.TenantRequest{}).
		Where("id = ? AND status IN ?", id, []model.RequestStatus{model.RequestRejected, model.RequestRemoved}).
		Updates(map[string]interface{}{
			"status":     model.RequestPending,
			"message":    message,
			"read_at":    nil,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

// Transition changes the status of a row that is currently in from.
func (r *TenantRequestRepository) Transition(ctx context.Context, id string, from, to model.RequestStatus, now time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&model.TenantRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

// MarkRemoved flips the accepted request of a pair to removed and clears
// read_at so the requester sees the change as unread.
func (r *TenantRequestRepository) MarkRemoved(ctx context.Context, listingID string, requesterID uint, now time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&model.TenantRequest{}).
		Where("listing_id = ? AND requester_id = ? AND status = ?", listingID, requesterID, model.RequestAccepted).
		Updates(map[string]interface{}{
			"status":     model.RequestRemoved,
			"read_at":    nil,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

// MarkRead stamps read_at on the requester's own unread rows among ids.
func (r *TenantRequestRepository) MarkRead(ctx context.Context, requesterID uint, ids []string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.DB.WithContext(ctx).Model(&model.TenantRequest{}).
		Where("requester_id = ? AND read_at IS NULL AND id IN ?", requesterID, ids).
		UpdateColumn("read_at", now)
	return res.RowsAffected, res.Error
}

// RequesterIDsForListing returns everyone who has a request on the listing.
func (r *TenantRequestRepository) RequesterIDsForListing(ctx context.Context, listingID string) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.TenantRequest{}).
		Where("listing_id = ?", listingID).
		Distinct().
		Pluck("requester_id", &ids).Error
	return ids, err
}

func (r *TenantRequestRepository) ListByListing(ctx context.Context, listingID string, status model.RequestStatus) ([]model.TenantRequest, error) {
	var reqs []model.TenantRequest
	db := r.DB.WithContext(ctx).
		Preload("Requester").
		Preload("Requester.Profile").
		Where("listing_id = ?", listingID)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	err := db.Order("created_at DESC").Find(&reqs).Error
	return reqs, err
}

// ListerRequestRow is one joined row of the lister notification feed.
type ListerRequestRow struct {
	RequestID           string
	ListingID           string
	ListingTitle        string
	Status              model.RequestStatus
	Message             string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	RequesterID         uint
	RequesterName       string
	RequesterAvatar     string
	RequesterUniversity *string
	RequesterMajor      *string
}

// ListForLister returns requests on the lister's non-archived listings,
// excluding removed ones, newest first.
func (r *TenantRequestRepository) ListForLister(ctx context.Context, listerID uint, limit int) ([]ListerRequestRow, error) {
	var rows []ListerRequestRow
	err := r.DB.WithContext(ctx).
		Table("tenant_requests AS tr").
		Select(`tr.id AS request_id, tr.listing_id AS listing_id, l.title AS listing_title,
			tr.status AS status, tr.message AS message, tr.created_at AS created_at, tr.updated_at AS updated_at,
			tr.requester_id AS requester_id, COALESCE(u.name, '') AS requester_name, COALESCE(u.avatar, '') AS requester_avatar,
			sp.university AS requester_university, sp.major AS requester_major`).
		Joins("JOIN listings AS l ON l.id = tr.listing_id AND l.deleted_at IS NULL").
		Joins("LEFT JOIN users AS u ON u.id = tr.requester_id").
		Joins("LEFT JOIN student_profiles AS sp ON sp.user_id = tr.requester_id AND sp.deleted_at IS NULL").
		Where("l.lister_id = ? AND l.status <> ? AND tr.status <> ?", listerID, model.ListingArchived, model.RequestRemoved).
		Order("tr.created_at DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// StudentRequestRow is one joined row of the student notification feed.
type StudentRequestRow struct {
	RequestID    string
	ListingID    string
	ListingTitle *string
	ListingCity  *string
	Status       model.RequestStatus
	ReadAt       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ListForRequester returns the requester's resolved (non-pending) requests,
// most recently updated first.
func (r *TenantRequestRepository) ListForRequester(ctx context.Context, requesterID uint, limit int) ([]StudentRequestRow, error) {
	var rows []StudentRequestRow
	err := r.DB.WithContext(ctx).
		Table("tenant_requests AS tr").
		Select(`tr.id AS request_id, tr.listing_id AS listing_id, l.title AS listing_title, l.city AS listing_city,
			tr.status AS status, tr.read_at AS read_at, tr.created_at AS created_at, tr.updated_at AS updated_at`).
		Joins("LEFT JOIN listings AS l ON l.id = tr.listing_id").
		Where("tr.requester_id = ? AND tr.status <> ?", requesterID, model.RequestPending).
		Order("tr.updated_at DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *TenantRequestRepository) CountPendingForLister(ctx context.Context, listerID uint) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Table("tenant_requests AS tr").
		Joins("JOIN listings AS l ON l.id = tr.listing_id AND l.deleted_at IS NULL").
		Where("l.lister_id = ? AND l.status <> ? AND tr.status = ?", listerID, model.ListingArchived, model.RequestPending).
		Count(&n).Error
	return n, err
}

func (r *TenantRequestRepository) CountUnreadForRequester(ctx context.Context, requesterID uint) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.TenantRequest{}).
		Where("requester_id = ? AND status <> ? AND read_at IS NULL", requesterID, model.RequestPending).
		Count(&n).Error
	return n, err
}
