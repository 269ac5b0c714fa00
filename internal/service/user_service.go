package service

import (
	"context"
	"dorm_match_backend/internal/model"
	"dorm_match_backend/internal/repository"
	"dorm_match_backend/internal/util"
	"dorm_match_backend/pkg/logger"
	"encoding/json"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const maxBioLen = 500

// ProfileInput is the editable part of a student profile.
type ProfileInput struct {
	University     string                 `json:"university" binding:"max=150"`
	Major          string                 `json:"major" binding:"max=150"`
	GraduationYear int                    `json:"graduationYear" binding:"omitempty,min=1950,max=2100"`
	Bio            string                 `json:"bio"`
	BudgetMin      int                    `json:"budgetMin" binding:"min=0"`
	BudgetMax      int                    `json:"budgetMax" binding:"min=0"`
	MoveInDate     *time.Time             `json:"moveInDate"`
	Lifestyle      map[string]interface{} `json:"lifestyle"`
}

func (in *ProfileInput) validate() error {
	if utf8.RuneCountInString(in.Bio) > maxBioLen {
		return util.Invalid(fmt.Sprintf("Bio must be at most %d characters", maxBioLen))
	}
	if in.BudgetMin < 0 || in.BudgetMax < 0 {
		return util.ErrInvalidData
	}
	if in.BudgetMax > 0 && in.BudgetMin > in.BudgetMax {
		return util.Invalid("Minimum budget cannot exceed maximum budget")
	}
	return nil
}

type UserService struct {
	UserRepo *repository.UserRepository
	Storage  *StorageService
	Cache    *CacheService
}

func NewUserService(userRepo *repository.UserRepository, storage *StorageService, cache *CacheService) *UserService {
	return &UserService{
		UserRepo: userRepo,
		Storage:  storage,
		Cache:    cache,
	}
}

// GetProfile returns the user with their student profile, if any.
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*model.User, error) {
	var user model.User
	err := s.Cache.Fetch(ctx, ProfileKey(userID), &user, func(ctx context.Context) (interface{}, error) {
		u, err := s.UserRepo.FindByID(ctx, userID)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, util.ErrUserNotFound
			}
			return nil, err
		}
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile upserts the caller's student profile. The cached profile is
// patched before the write and rolled back if the write fails.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in ProfileInput) (*model.StudentProfile, error) {
	if userID == 0 {
		return nil, util.ErrNotAuthenticated
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	profile := &model.StudentProfile{
		UserID:         userID,
		University:     in.University,
		Major:          in.Major,
		GraduationYear: in.GraduationYear,
		Bio:            in.Bio,
		BudgetMin:      in.BudgetMin,
		BudgetMax:      in.BudgetMax,
		MoveInDate:     in.MoveInDate,
	}
	if in.Lifestyle != nil {
		raw, err := json.Marshal(in.Lifestyle)
		if err != nil {
			return nil, util.ErrInvalidData
		}
		profile.Lifestyle = datatypes.JSON(raw)
	}

	err := s.Cache.OptimisticPatch(ctx, ProfileKey(userID), map[string]interface{}{"profile": profile}, func(ctx context.Context) error {
		return s.UserRepo.UpsertProfile(ctx, profile)
	})
	if err != nil {
		return nil, err
	}
	s.invalidateProfileViews(ctx, userID)

	saved, err := s.UserRepo.FindProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// UploadAvatar stores a new avatar and then removes the previous object.
func (s *UserService) UploadAvatar(ctx context.Context, userID uint, filename string, reader io.Reader, size int64) (*model.User, error) {
	user, err := s.UserRepo.FindByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}

	img, err := s.Storage.StoreImage(ctx, fmt.Sprintf("avatars/%d", userID), filename, reader, size)
	if err != nil {
		return nil, err
	}

	if err := s.UserRepo.UpdateAvatar(ctx, userID, img.URL, img.Key); err != nil {
		s.Storage.DeleteQuietly(ctx, img.Key, img.ThumbnailKey)
		return nil, err
	}

	if user.AvatarKey != "" && user.AvatarKey != img.Key {
		s.Storage.DeleteQuietly(ctx, user.AvatarKey)
	}
	logger.Log.Info("avatar updated", zap.Uint("user_id", userID), zap.String("key", img.Key))

	user.Avatar = img.URL
	user.AvatarKey = img.Key
	s.invalidateProfileViews(ctx, userID)
	return user, nil
}

// invalidateProfileViews drops the cached profile and every lister feed that
// shows the user as a requester.
func (s *UserService) invalidateProfileViews(ctx context.Context, userID uint) {
	keys := []string{ProfileKey(userID)}
	if s.Cache.enabled() {
		listerIDs, err := s.UserRepo.ListerIDsForRequester(ctx, userID)
		if err != nil {
			logger.Log.Warn("lister feed lookup failed", zap.Uint("user_id", userID), zap.Error(err))
		}
		for _, id := range listerIDs {
			keys = append(keys, ListerNotificationsKey(id))
		}
	}
	s.Cache.Invalidate(ctx, keys...)
}

func (s *UserService) CompleteOnboarding(ctx context.Context, userID uint) error {
	if userID == 0 {
		return util.ErrNotAuthenticated
	}
	err := s.Cache.OptimisticPatch(ctx, ProfileKey(userID), map[string]interface{}{"onboarded": true}, func(ctx context.Context) error {
		return s.UserRepo.SetOnboarded(ctx, userID)
	})
	if err != nil {
		return err
	}
	logger.Log.Info("onboarding completed", zap.Uint("user_id", userID))
	return nil
}
