package controller

import (
	"dorm_match_backend/internal/model"
	"dorm_match_backend/internal/repository"
	"dorm_match_backend/internal/service"
	"dorm_match_backend/internal/util"
	"encoding/json"
	"io"
	"mime/multipart"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type ListingController struct {
	ListingService *service.ListingService
}

func NewListingController(listingService *service.ListingService) *ListingController {
	return &ListingController{ListingService: listingService}
}

func toUpload(fh *multipart.FileHeader) service.Upload {
	return service.Upload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// Create godoc
// @Summary Publish a listing
// @Description Accepts JSON, or multipart with a "listing" JSON field and "photos" files. Failed photo uploads are returned as warnings.
// @Tags Listings
// @Accept  json,mpfd
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.ListingInput true "Listing"
// @Success 201 {object} util.Response{data=service.ListingCreateResult} "Created"
// @Failure 400 {object} util.Response "Invalid data"
// @Failure 403 {object} util.Response "Unauthorized"
// @Router /api/listings [post]
func (c *ListingController) Create(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var in service.ListingInput
	var uploads []service.Upload

	if ctx.ContentType() == binding.MIMEMultipartPOSTForm {
		form, err := ctx.MultipartForm()
		if err != nil {
			util.BadRequest(ctx, util.ErrInvalidData.Message)
			return
		}
		if err := json.Unmarshal([]byte(ctx.PostForm("listing")), &in); err != nil {
			util.BadRequest(ctx, util.ErrInvalidData.Message)
			return
		}
		if err := binding.Validator.ValidateStruct(&in); err != nil {
			util.RespondBindError(ctx, err)
			return
		}
		for _, fh := range form.File["photos"] {
			uploads = append(uploads, toUpload(fh))
		}
	} else if err := ctx.ShouldBindJSON(&in); err != nil {
		util.RespondBindError(ctx, err)
		return
	}

	result, err := c.ListingService.Create(ctx.Request.Context(), claims.UserID, in, uploads)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, result)
}

// Browse godoc
// @Summary Browse listings
// @Tags Listings
// @Produce  json
// @Param   city query string false "City"
// @Param   maxRent query int false "Maximum rent in cents"
// @Param   minOccupants query int false "Minimum occupancy"
// @Param   page query int false "Page" default(1)
// @Param   pageSize query int false "Page size, at most 50" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse} "Success"
// @Router /api/listings [get]
func (c *ListingController) Browse(ctx *gin.Context) {
	page := util.QueryInt(ctx.Query("page"), 1)
	pageSize := util.QueryInt(ctx.Query("pageSize"), 20)
	filter := repository.ListingFilter{
		City:         ctx.Query("city"),
		MaxRentCents: util.QueryInt(ctx.Query("maxRent"), 0),
		MinOccupants: util.QueryInt(ctx.Query("minOccupants"), 0),
	}

	listings, total, err := c.ListingService.Browse(ctx.Request.Context(), filter, page, pageSize)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: listings, Total: total, Page: page, Limit: pageSize})
}

// Mine godoc
// @Summary The caller's listings
// @Tags Listings
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=util.PageResponse} "Success"
// @Router /api/lister/listings [get]
func (c *ListingController) Mine(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	page := util.QueryInt(ctx.Query("page"), 1)
	pageSize := util.QueryInt(ctx.Query("pageSize"), 20)

	listings, total, err := c.ListingService.Mine(ctx.Request.Context(), claims.UserID, page, pageSize)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: listings, Total: total, Page: page, Limit: pageSize})
}

// Detail godoc
// @Summary Listing detail
// @Description Authenticated students also get the status of their own request
// @Tags Listings
// @Produce  json
// @Param   id path string true "Listing ID"
// @Success 200 {object} util.Response{data=service.ListingDetail} "Success"
// @Failure 404 {object} util.Response "Listing not found"
// @Router /api/listings/{id} [get]
func (c *ListingController) Detail(ctx *gin.Context) {
	var viewerID uint
	if claims := util.GetUserFromContext(ctx); claims != nil {
		viewerID = claims.UserID
	}

	detail, err := c.ListingService.Detail(ctx.Request.Context(), ctx.Param("id"), viewerID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// Update godoc
// @Summary Edit a listing
// @Tags Listings
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "Listing ID"
// @Param   body body service.ListingInput true "Listing"
// @Success 200 {object} util.Response{data=model.Listing} "Success"
// @Failure 403 {object} util.Response "Unauthorized"
// @Router /api/listings/{id} [put]
func (c *ListingController) Update(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var in service.ListingInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.RespondBindError(ctx, err)
		return
	}

	listing, err := c.ListingService.Update(ctx.Request.Context(), ctx.Param("id"), claims.UserID, in)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, listing)
}

type SetStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active archived"`
}

// SetStatus godoc
// @Summary Archive or reactivate a listing
// @Tags Listings
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "Listing ID"
// @Param   body body SetStatusRequest true "Status"
// @Success 200 {object} util.Response "Success"
// @Router /api/listings/{id}/status [patch]
func (c *ListingController) SetStatus(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req SetStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.RespondBindError(ctx, err)
		return
	}

	status := model.ListingStatus(req.Status)
	if err := c.ListingService.SetStatus(ctx.Request.Context(), ctx.Param("id"), claims.UserID, status); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"status": status})
}

// AddPhoto godoc
// @Summary Add a photo to a listing
// @Tags Listings
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "Listing ID"
// @Param   file formData file true "Image file"
// @Success 201 {object} util.Response{data=model.ListingPhoto} "Created"
// @Router /api/listings/{id}/photos [post]
func (c *ListingController) AddPhoto(ctx *gin.Context) {
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

	photo, err := c.ListingService.AddPhoto(ctx.Request.Context(), ctx.Param("id"), claims.UserID, toUpload(file))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, photo)
}

// DeletePhoto godoc
// @Summary Remove a photo from a listing
// @Tags Listings
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "Listing ID"
// @Param   photoId path string true "Photo ID"
// @Success 200 {object} util.Response "Success"
// @Router /api/listings/{id}/photos/{photoId} [delete]
func (c *ListingController) DeletePhoto(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.ListingService.DeletePhoto(ctx.Request.Context(), ctx.Param("id"), ctx.Param("photoId"), claims.UserID); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// Manage godoc
// @Summary Owner view of a listing
// @Description The listing with its pending requests and current tenants
// @Tags Listings
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "Listing ID"
// @Success 200 {object} util.Response{data=service.ListingManageView} "Success"
// @Router /api/listings/{id}/manage [get]
func (c *ListingController) Manage(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.ListingService.Manage(ctx.Request.Context(), ctx.Param("id"), claims.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// Tenants godoc
// @Summary Current tenants of a listing
// @Tags Listings
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "Listing ID"
// @Success 200 {object} util.Response{data=[]model.ListingTenant} "Success"
// @Router /api/listings/{id}/tenants [get]
func (c *ListingController) Tenants(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	tenants, err := c.ListingService.Tenants(ctx.Request.Context(), ctx.Param("id"), claims.UserID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, tenants)
}
