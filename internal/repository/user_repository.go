package repository

import (
	"context"
	"dorm_match_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Preload("Profile").First(&user, id).Error
	return &user, err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	return &user, err
}

func (r *UserRepository) UpdateLastSeen(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		UpdateColumn("last_seen", time.Now()).
		Error
}

// ListerIDsForRequester returns the owners of every listing the user has a
// request on, whatever its status.
func (r *UserRepository) ListerIDsForRequester(ctx context.Context, requesterID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).
		Table("tenant_requests AS tr").
		Joins("JOIN listings AS l ON l.id = tr.listing_id").
		Where("tr.requester_id = ?", requesterID).
		Distinct().
		Pluck("l.lister_id", &ids).Error
	return ids, err
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		UpdateColumn("last_login", time.Now()).
		Error
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, userID uint, url, key string) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"avatar": url, "avatar_key": key}).
		Error
}

func (r *UserRepository) SetOnboarded(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Update("onboarded", true).
		Error
}

func (r *UserRepository) FindProfile(ctx context.Context, userID uint) (*model.StudentProfile, error) {
	var profile model.StudentProfile
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	return &profile, err
}

// UpsertProfile inserts the profile or overwrites the editable columns of the
// existing row for the same user.
func (r *UserRepository) UpsertProfile(ctx context.Context, profile *model.StudentProfile) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"university", "major", "graduation_year", "bio",
			"budget_min", "budget_max", "move_in_date", "lifestyle", "updated_at",
		}),
	}).Create(profile).Error
}
