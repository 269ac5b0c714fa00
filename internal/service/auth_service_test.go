package service

import (
	"context"
	"dorm_match_backend/internal/config"
	"dorm_match_backend/internal/model"
	"dorm_match_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(env *testEnv) *AuthService {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret-that-is-long-enough-for-hs256"
	cfg.JWT.ExpireTime = time.Hour
	return NewAuthService(env.users, cfg)
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newAuthService(env)

	user := &model.User{Name: "Sam", Email: " Sam@Example.com ", Password: "hunter22"}
	require.NoError(t, svc.Register(ctx, user))
	assert.Equal(t, model.Student, user.Role)
	assert.Equal(t, "sam@example.com", user.Email)
	assert.NotEqual(t, "hunter22", user.Password)

	err := svc.Register(ctx, &model.User{Name: "Sam2", Email: "SAM@example.com", Password: "x"})
	assert.ErrorIs(t, err, util.ErrEmailRegistered)

	token, logged, err := svc.Login(ctx, "sam@EXAMPLE.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)

	claims, err := util.ParseJWT(token, svc.Cfg.JWT.Secret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, model.Student, claims.Role)

	current, err := svc.GetCurrentUser(ctx, claims)
	require.NoError(t, err)
	assert.NotNil(t, current.LastLogin)

	_, _, err = svc.Login(ctx, "sam@example.com", "wrong")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
}

func TestAuthService_RegisterRejectsAdmin(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)

	err := svc.Register(context.Background(), &model.User{Name: "Root", Email: "root@example.com", Password: "x", Role: model.Admin})
	assert.ErrorIs(t, err, util.ErrInvalidData)
}

func TestAuthService_DisabledAccountCannotLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newAuthService(env)

	user := &model.User{Name: "Lena", Email: "lena@example.com", Password: "pw123456", Role: model.Lister}
	require.NoError(t, svc.Register(ctx, user))
	require.NoError(t, env.db.Model(user).Update("disabled", true).Error)

	_, _, err := svc.Login(ctx, "lena@example.com", "pw123456")
	assert.ErrorIs(t, err, util.ErrAccountDisabled)

	_, err = svc.GetCurrentUser(ctx, nil)
	assert.ErrorIs(t, err, util.ErrNotAuthenticated)
	_, err = svc.GetCurrentUser(ctx, &util.Claims{UserID: 999})
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}
