package repository

import (
	"context"
	"dorm_match_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ListingTenantRepository struct {
	DB *gorm.DB
}

func NewListingTenantRepository(db *gorm.DB) *ListingTenantRepository {
	return &ListingTenantRepository{DB: db}
}

func (r *ListingTenantRepository) WithTx(tx *gorm.DB) *ListingTenantRepository {
	return &ListingTenantRepository{DB: tx}
}

// Add inserts the (listing, user) pair. An existing pair is left untouched;
// the returned bool reports whether a row was actually created.
func (r *ListingTenantRepository) Add(ctx context.Context, listingID string, userID uint) (bool, error) {
	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit("User").
		Create(&model.ListingTenant{ListingID: listingID, UserID: userID})
	return res.RowsAffected > 0, res.Error
}

// Remove hard-deletes the pair. Deleting a missing pair is not an error.
func (r *ListingTenantRepository) Remove(ctx context.Context, listingID string, userID uint) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("listing_id = ? AND user_id = ?", listingID, userID).
		Delete(&model.ListingTenant{})
	return res.RowsAffected, res.Error
}

func (r *ListingTenantRepository) Exists(ctx context.Context, listingID string, userID uint) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.ListingTenant{}).
		Where("listing_id = ? AND user_id = ?", listingID, userID).
		Count(&n).Error
	return n > 0, err
}

func (r *ListingTenantRepository) Count(ctx context.Context, listingID string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.ListingTenant{}).
		Where("listing_id = ?", listingID).
		Count(&n).Error
	return n, err
}

func (r *ListingTenantRepository) ListByListing(ctx context.Context, listingID string) ([]model.ListingTenant, error) {
	var tenants []model.ListingTenant
	err := r.DB.WithContext(ctx).
		Preload("User").
		Preload("User.Profile").
		Where("listing_id = ?", listingID).
		Order("added_at ASC").
		Find(&tenants).Error
	return tenants, err
}
