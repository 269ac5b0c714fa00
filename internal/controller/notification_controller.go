package controller

import (
	"dorm_match_backend/internal/service"
	"dorm_match_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type NotificationController struct {
	NotificationService *service.NotificationService
	RequestService      *service.TenantRequestService
}

func NewNotificationController(notificationService *service.NotificationService, requestService *service.TenantRequestService) *NotificationController {
	return &NotificationController{
		NotificationService: notificationService,
		RequestService:      requestService,
	}
}

// Lister godoc
// @Summary Lister notifications
// @Description Requests on the caller's active listings split into pending and resolved, newest first, at most 50
// @Tags Notifications
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.ListerNotifications} "Success"
// @Router /api/notifications/lister [get]
func (c *NotificationController) Lister(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	out, err := c.NotificationService.ListerNotifications(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, out)
}

// Student godoc
// @Summary Student notifications
// @Description The caller's resolved requests, most recently updated first, at most 50
// @Tags Notifications
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.StudentNotifications} "Success"
// @Router /api/notifications/student [get]
func (c *NotificationController) Student(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	out, err := c.NotificationService.StudentNotifications(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, out)
}

type MarkReadRequest struct {
	IDs []string `json:"ids"`
}

// MarkRead godoc
// @Summary Mark student notifications read
// @Description Only the caller's own unread rows are changed
// @Tags Notifications
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body MarkReadRequest true "Request IDs"
// @Success 200 {object} util.Response{data=object} "Success"
// @Router /api/notifications/student/read [post]
func (c *NotificationController) MarkRead(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req MarkReadRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.RespondBindError(ctx, err)
		return
	}

	n, err := c.RequestService.MarkRequesterNotificationsRead(ctx.Request.Context(), req.IDs, claims.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"updated": n})
}

// Counts godoc
// @Summary Notification badge counts
// @Tags Notifications
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.NotificationCounts} "Success"
// @Router /api/notifications/counts [get]
func (c *NotificationController) Counts(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	out, err := c.NotificationService.UnreadCounts(ctx.Request.Context(), claims.UserID, claims.Role)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, out)
}
