package controller

import (
	"dorm_match_backend/internal/service"
	"dorm_match_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	UserService *service.UserService
}

func NewUserController(userService *service.UserService) *UserController {
	return &UserController{
		UserService: userService,
	}
}

// UpdateProfile godoc
// @Summary Update student profile
// @Description Creates or replaces the caller's student profile
// @Tags User
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.ProfileInput true "Profile"
// @Success 200 {object} util.Response{data=model.StudentProfile} "Success"
// @Failure 400 {object} util.Response "Invalid data"
// @Failure 401 {object} util.Response "Not authenticated"
// @Router /api/user/profile [put]
func (c *UserController) UpdateProfile(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.ProfileInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.RespondBindError(ctx, err)
		return
	}

	profile, err := c.UserService.UpdateProfile(ctx.Request.Context(), claims.UserID, req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, profile)
}

// UploadAvatar godoc
// @Summary Upload avatar
// @Tags User
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   file formData file true "Image file"
// @Success 200 {object} util.Response{data=object} "Success"
// @Failure 400 {object} util.Response "Invalid data"
// @Router /api/user/avatar [post]
func (c *UserController) UploadAvatar(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, util.ErrInvalidData.Message)
		return
	}

	src, err := file.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer src.Close()

	user, err := c.UserService.UploadAvatar(ctx.Request.Context(), claims.UserID, file.Filename, src, file.Size)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"avatar": user.Avatar})
}

// CompleteOnboarding godoc
// @Summary Finish onboarding
// @Tags User
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response "Success"
// @Router /api/user/onboarding/complete [post]
func (c *UserController) CompleteOnboarding(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.UserService.CompleteOnboarding(ctx.Request.Context(), claims.UserID); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"onboarded": true})
}
