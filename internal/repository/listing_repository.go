package repository

import (
	"context"
	"dorm_match_backend/internal/model"

	"gorm.io/gorm"
)

type ListingRepository struct {
	DB *gorm.DB
}

func NewListingRepository(db *gorm.DB) *ListingRepository {
	return &ListingRepository{DB: db}
}

type ListingFilter struct {
	City         string
	MaxRentCents int
	MinOccupants int
	ListerID     uint
	IncludeAll   bool // include archived listings
}

func (r *ListingRepository) Create(ctx context.Context, listing *model.Listing) error {
	return r.DB.WithContext(ctx).Omit("Photos", "Lister").Create(listing).Error
}

func (r *ListingRepository) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	var listing model.Listing
	err := r.DB.WithContext(ctx).
		Preload("Photos", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, created_at ASC") }).
		First(&listing, "id = ?", id).Error
	return &listing, err
}

// FindOwner returns the lister_id of a listing without loading the row.
func (r *ListingRepository) FindOwner(ctx context.Context, id string) (uint, error) {
	var listing model.Listing
	err := r.DB.WithContext(ctx).Select("id", "lister_id").First(&listing, "id = ?", id).Error
	return listing.ListerID, err
}

func (r *ListingRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.DB.WithContext(ctx).Model(&model.Listing{}).Where("id = ?", id).Updates(fields).Error
}

func (r *ListingRepository) UpdateStatus(ctx context.Context, id string, status model.ListingStatus) error {
	return r.DB.WithContext(ctx).Model(&model.Listing{}).Where("id = ?", id).Update("status", status).Error
}

func (r *ListingRepository) List(ctx context.Context, filter ListingFilter, limit, offset int) ([]model.Listing, int64, error) {
	var listings []model.Listing
	var total int64

	db := r.DB.WithContext(ctx).Model(&model.Listing{})
	if !filter.IncludeAll {
		db = db.Where("status = ?", model.ListingActive)
	}
	if filter.ListerID != 0 {
		db = db.Where("lister_id = ?", filter.ListerID)
	}
	if filter.City != "" {
		db = db.Where("LOWER(city) = LOWER(?)", filter.City)
	}
	if filter.MaxRentCents > 0 {
		db = db.Where("rent_cents <= ?", filter.MaxRentCents)
	}
	if filter.MinOccupants > 0 {
		db = db.Where("max_occupants >= ?", filter.MinOccupants)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Preload("Photos", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&listings).Error

	return listings, total, err
}

func (r *ListingRepository) AddPhoto(ctx context.Context, photo *model.ListingPhoto) error {
	return r.DB.WithContext(ctx).Create(photo).Error
}

func (r *ListingRepository) FindPhoto(ctx context.Context, listingID, photoID string) (*model.ListingPhoto, error) {
	var photo model.ListingPhoto
	err := r.DB.WithContext(ctx).Where("id = ? AND listing_id = ?", photoID, listingID).First(&photo).Error
	return &photo, err
}

func (r *ListingRepository) DeletePhoto(ctx context.Context, photoID string) error {
	return r.DB.WithContext(ctx).Where("id = ?", photoID).Delete(&model.ListingPhoto{}).Error
}

func (r *ListingRepository) CountPhotos(ctx context.Context, listingID string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.ListingPhoto{}).Where("listing_id = ?", listingID).Count(&n).Error
	return n, err
}
