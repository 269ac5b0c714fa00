package service

import (
	"context"
	"dorm_match_backend/internal/config"
	"dorm_match_backend/internal/model"
	"dorm_match_backend/internal/repository"
	"dorm_match_backend/internal/util"
	"dorm_match_backend/pkg/logger"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	UserRepo *repository.UserRepository
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
	}
}

// Register creates a student or lister account. Admins are never created here.
func (s *AuthService) Register(ctx context.Context, user *model.User) error {
	if user.Role == "" {
		user.Role = model.Student
	}
	if user.Role != model.Student && user.Role != model.Lister {
		return util.ErrInvalidData
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	_, err := s.UserRepo.FindByEmail(ctx, user.Email)
	if err == nil {
		return util.ErrEmailRegistered
	} else if !repository.IsNotFound(err) {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.Password = string(hashedPassword)
	if err := s.UserRepo.Create(ctx, user); err != nil {
		if repository.IsDuplicate(err) {
			return util.ErrEmailRegistered
		}
		return err
	}

	logger.Log.Info("user registered", zap.Uint("user_id", user.ID), zap.String("role", string(user.Role)))
	return nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.UserRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if repository.IsNotFound(err) {
			return "", nil, util.ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, util.ErrInvalidCredentials
	}
	if user.Disabled {
		return "", nil, util.ErrAccountDisabled
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return "", nil, err
	}

	if err := s.UserRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		logger.Log.Warn("failed to record last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	return token, user, nil
}

// GetCurrentUser loads the account behind the token claims.
func (s *AuthService) GetCurrentUser(ctx context.Context, claims *util.Claims) (*model.User, error) {
	if claims == nil {
		return nil, util.ErrNotAuthenticated
	}
	user, err := s.UserRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
