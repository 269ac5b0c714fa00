package util

import (
	"testing"
	"time"

	"dorm_match_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	user := &model.User{Email: "s1@uni.edu", Role: model.Student}
	user.ID = 7

	token, err := GenerateJWT(user, "test-secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, model.Student, claims.Role)

	_, err = ParseJWT(token, "other-secret")
	assert.Error(t, err)
}

func TestJWTExpired(t *testing.T) {
	user := &model.User{Email: "s1@uni.edu", Role: model.Student}
	token, err := GenerateJWT(user, "test-secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseJWT(token, "test-secret")
	assert.Error(t, err)
}

func TestImageExtension(t *testing.T) {
	assert.Equal(t, ".jpg", ImageExtension("Room.JPG"))
	assert.Equal(t, ".webp", ImageExtension("a/b/c.webp"))
	assert.Equal(t, "", ImageExtension("notes.pdf"))
	assert.Equal(t, "", ImageExtension("noext"))
}
