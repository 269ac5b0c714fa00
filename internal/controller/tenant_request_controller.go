package controller

import (
	"dorm_match_backend/internal/service"
	"dorm_match_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type TenantRequestController struct {
	RequestService *service.TenantRequestService
}

func NewTenantRequestController(requestService *service.TenantRequestService) *TenantRequestController {
	return &TenantRequestController{RequestService: requestService}
}

// SubmitRequest is the body of a tenant request. The message is optional.
type SubmitRequest struct {
	Message string `json:"message"`
}

// Submit godoc
// @Summary Request to join a listing
// @Description Creates a pending request, or reopens a rejected or removed one
// @Tags Tenant Requests
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "Listing ID"
// @Param   body body SubmitRequest false "Message, at most 300 characters"
// @Success 201 {object} util.Response{data=model.TenantRequest} "Created"
// @Failure 400 {object} util.Response "Invalid data"
// @Failure 404 {object} util.Response "Listing not found"
// @Failure 409 {object} util.Response "Duplicate request"
// @Failure 422 {object} util.Response "Business rule violation"
// @Router /api/listings/{id}/requests [post]
func (c *TenantRequestController) Submit(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req SubmitRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.RespondBindError(ctx, err)
			return
		}
	}

	tr, err := c.RequestService.Submit(ctx.Request.Context(), ctx.Param("id"), claims.UserID, req.Message)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, tr)
}

// Accept godoc
// @Summary Accept a tenant request
// @Tags Tenant Requests
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "Request ID"
// @Success 200 {object} util.Response{data=model.TenantRequest} "Success"
// @Failure 403 {object} util.Response "Unauthorized"
// @Failure 404 {object} util.Response "Request not found"
// @Failure 422 {object} util.Response "This request has already been handled"
// @Router /api/requests/{id}/accept [post]
func (c *TenantRequestController) Accept(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	tr, err := c.RequestService.Accept(ctx.Request.Context(), ctx.Param("id"), claims.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, tr)
}

// Reject godoc
// @Summary Reject a tenant request
// @Tags Tenant Requests
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "Request ID"
// @Success 200 {object} util.Response{data=model.TenantRequest} "Success"
// @Router /api/requests/{id}/reject [post]
func (c *TenantRequestController) Reject(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	tr, err := c.RequestService.Reject(ctx.Request.Context(), ctx.Param("id"), claims.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, tr)
}

// RemoveTenant godoc
// @Summary Remove a tenant from a listing
// @Tags Tenant Requests
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "Listing ID"
// @Param   userId path int true "Tenant user ID"
// @Success 200 {object} util.Response "Success"
// @Router /api/listings/{id}/tenants/{userId} [delete]
func (c *TenantRequestController) RemoveTenant(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	tenantID := util.MustParseUint(ctx.Param("userId"))
	if err := c.RequestService.RemoveTenant(ctx.Request.Context(), ctx.Param("id"), tenantID, claims.UserID); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
