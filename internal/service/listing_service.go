package service

import (
	"context"
	"dorm_match_backend/internal/model"
	"dorm_match_backend/internal/repository"
	"dorm_match_backend/internal/util"
	"dorm_match_backend/pkg/logger"
	"dorm_match_backend/pkg/monitoring"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

type ListingInput struct {
	Title         string     `json:"title" binding:"required,max=150"`
	Description   string     `json:"description" binding:"max=5000"`
	Address       string     `json:"address" binding:"max=255"`
	City          string     `json:"city" binding:"required,max=100"`
	Latitude      *float64   `json:"latitude" binding:"omitempty,latitude"`
	Longitude     *float64   `json:"longitude" binding:"omitempty,longitude"`
	RentCents     int        `json:"rentCents" binding:"min=0"`
	MaxOccupants  int        `json:"maxOccupants" binding:"required,min=1,max=20"`
	AvailableFrom *time.Time `json:"availableFrom"`
	Amenities     []string   `json:"amenities"`
}

func (in *ListingInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.City = strings.TrimSpace(in.City)
	if in.Title == "" || in.City == "" || in.MaxOccupants < 1 || in.RentCents < 0 {
		return util.ErrInvalidData
	}
	return nil
}

func (in *ListingInput) amenities() datatypes.JSON {
	if in.Amenities == nil {
		return nil
	}
	raw, _ := json.Marshal(in.Amenities)
	return datatypes.JSON(raw)
}

// Upload is one file from a multipart form.
type Upload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

type ListingCreateResult struct {
	Listing  *model.Listing `json:"listing"`
	Warnings []string       `json:"warnings,omitempty"`
}

type ListingDetail struct {
	*model.Listing
	Occupancy int64 `json:"occupancy"`
	// MyRequestStatus is the viewing student's own request state, if any.
	MyRequestStatus *model.RequestStatus `json:"myRequestStatus,omitempty"`
}

type ListingManageView struct {
	Listing         *model.Listing        `json:"listing"`
	PendingRequests []model.TenantRequest `json:"pendingRequests"`
	Tenants         []model.ListingTenant `json:"tenants"`
}

type ListingService struct {
	ListingRepo *repository.ListingRepository
	RequestRepo *repository.TenantRequestRepository
	TenantRepo  *repository.ListingTenantRepository
	Storage     *StorageService
	Cache       *CacheService
	MaxPhotos   int
}

func NewListingService(
	listingRepo *repository.ListingRepository,
	requestRepo *repository.TenantRequestRepository,
	tenantRepo *repository.ListingTenantRepository,
	storage *StorageService,
	cache *CacheService,
	maxPhotos int,
) *ListingService {
	return &ListingService{
		ListingRepo: listingRepo,
		RequestRepo: requestRepo,
		TenantRepo:  tenantRepo,
		Storage:     storage,
		Cache:       cache,
		MaxPhotos:   maxPhotos,
	}
}

func pagination(page, pageSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return pageSize, (page - 1) * pageSize
}

func (s *ListingService) ensureOwner(ctx context.Context, listingID string, callerID uint) error {
	if callerID == 0 {
		return util.ErrNotAuthenticated
	}
	if !model.IsUUID(listingID) {
		return util.ErrInvalidData
	}
	ownerID, err := s.ListingRepo.FindOwner(ctx, listingID)
	if err != nil {
		if repository.IsNotFound(err) {
			return util.ErrListingNotFound
		}
		return err
	}
	if ownerID != callerID {
		return util.ErrUnauthorized
	}
	return nil
}

// Create writes the listing and then uploads photos one by one. A failed
// photo never undoes the listing, it is reported in Warnings instead.
func (s *ListingService) Create(ctx context.Context, listerID uint, in ListingInput, photos []Upload) (*ListingCreateResult, error) {
	if listerID == 0 {
		return nil, util.ErrNotAuthenticated
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if s.MaxPhotos > 0 && len(photos) > s.MaxPhotos {
		return nil, util.ErrTooManyListingPhotos
	}

	listing := &model.Listing{
		ListerID:      listerID,
		Title:         in.Title,
		Description:   in.Description,
		Address:       in.Address,
		City:          in.City,
		Latitude:      in.Latitude,
		Longitude:     in.Longitude,
		RentCents:     in.RentCents,
		MaxOccupants:  in.MaxOccupants,
		AvailableFrom: in.AvailableFrom,
		Status:        model.ListingActive,
		Amenities:     in.amenities(),
	}
	if err := s.ListingRepo.Create(ctx, listing); err != nil {
		return nil, err
	}
	logger.Log.Info("listing created", zap.String("listing_id", listing.ID), zap.Uint("caller_id", listerID))

	result := &ListingCreateResult{Listing: listing}
	for i, up := range photos {
		photo, err := s.storePhoto(ctx, listing.ID, up, i)
		if err != nil {
			monitoring.PhotoUploadFailures.Inc()
			logger.Log.Warn("listing photo upload failed",
				zap.String("listing_id", listing.ID),
				zap.String("file", up.Filename),
				zap.Error(err))
			result.Warnings = append(result.Warnings, fmt.Sprintf("Photo %q could not be uploaded, please retry later: %s", up.Filename, err.Error()))
			continue
		}
		listing.Photos = append(listing.Photos, *photo)
	}
	return result, nil
}

func (s *ListingService) storePhoto(ctx context.Context, listingID string, up Upload, position int) (*model.ListingPhoto, error) {
	rc, err := up.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	img, err := s.Storage.StoreImage(ctx, "listings/"+listingID, up.Filename, rc, up.Size)
	if err != nil {
		return nil, err
	}
	photo := &model.ListingPhoto{
		ListingID:    listingID,
		ObjectKey:    img.Key,
		URL:          img.URL,
		ThumbnailKey: img.ThumbnailKey,
		ThumbnailURL: img.ThumbnailURL,
		Position:     position,
	}
	if err := s.ListingRepo.AddPhoto(ctx, photo); err != nil {
		s.Storage.DeleteQuietly(ctx, img.Key, img.ThumbnailKey)
		return nil, err
	}
	return photo, nil
}

func (s *ListingService) Update(ctx context.Context, listingID string, callerID uint, in ListingInput) (*model.Listing, error) {
	if err := s.ensureOwner(ctx, listingID, callerID); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"title":          in.Title,
		"description":    in.Description,
		"address":        in.Address,
		"city":           in.City,
		"latitude":       in.Latitude,
		"longitude":      in.Longitude,
		"rent_cents":     in.RentCents,
		"max_occupants":  in.MaxOccupants,
		"available_from": in.AvailableFrom,
		"amenities":      in.amenities(),
	}
	if err := s.ListingRepo.Update(ctx, listingID, fields); err != nil {
		return nil, err
	}
	keys := []string{ListingKey(listingID), ListerNotificationsKey(callerID)}
	// title and city also appear in each requester's feed
	if s.Cache.enabled() {
		requesterIDs, err := s.RequestRepo.RequesterIDsForListing(ctx, listingID)
		if err != nil {
			logger.Log.Warn("student feed lookup failed", zap.String("listing_id", listingID), zap.Error(err))
		}
		for _, id := range requesterIDs {
			keys = append(keys, StudentNotificationsKey(id))
		}
	}
	s.Cache.Invalidate(ctx, keys...)
	return s.ListingRepo.FindByID(ctx, listingID)
}

// SetStatus toggles a listing between active and archived. Archived listings
// drop out of browse results and of the lister's notifications.
func (s *ListingService) SetStatus(ctx context.Context, listingID string, callerID uint, status model.ListingStatus) error {
	if status != model.ListingActive && status != model.ListingArchived {
		return util.ErrInvalidData
	}
	if err := s.ensureOwner(ctx, listingID, callerID); err != nil {
		return err
	}

	err := s.Cache.OptimisticPatch(ctx, ListingKey(listingID), map[string]interface{}{"status": status}, func(ctx context.Context) error {
		return s.ListingRepo.UpdateStatus(ctx, listingID, status)
	})
	if err != nil {
		return err
	}
	logger.Log.Info("listing status changed",
		zap.String("listing_id", listingID),
		zap.String("status", string(status)),
		zap.Uint("caller_id", callerID))
	s.Cache.Invalidate(ctx, ListerNotificationsKey(callerID), NotificationCountsKey(callerID))
	return nil
}

func (s *ListingService) AddPhoto(ctx context.Context, listingID string, callerID uint, up Upload) (*model.ListingPhoto, error) {
	if err := s.ensureOwner(ctx, listingID, callerID); err != nil {
		return nil, err
	}
	n, err := s.ListingRepo.CountPhotos(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if s.MaxPhotos > 0 && int(n) >= s.MaxPhotos {
		return nil, util.ErrTooManyListingPhotos
	}

	photo, err := s.storePhoto(ctx, listingID, up, int(n))
	if err != nil {
		return nil, err
	}
	s.Cache.Invalidate(ctx, ListingKey(listingID))
	return photo, nil
}

func (s *ListingService) DeletePhoto(ctx context.Context, listingID, photoID string, callerID uint) error {
	if err := s.ensureOwner(ctx, listingID, callerID); err != nil {
		return err
	}
	if !model.IsUUID(photoID) {
		return util.ErrInvalidData
	}
	photo, err := s.ListingRepo.FindPhoto(ctx, listingID, photoID)
	if err != nil {
		if repository.IsNotFound(err) {
			return util.ErrPhotoNotFound
		}
		return err
	}
	if err := s.ListingRepo.DeletePhoto(ctx, photo.ID); err != nil {
		return err
	}
	s.Storage.DeleteQuietly(ctx, photo.ObjectKey, photo.ThumbnailKey)
	s.Cache.Invalidate(ctx, ListingKey(listingID))
	return nil
}

// Browse lists active listings, newest first.
func (s *ListingService) Browse(ctx context.Context, filter repository.ListingFilter, page, pageSize int) ([]model.Listing, int64, error) {
	filter.IncludeAll = false
	filter.ListerID = 0
	limit, offset := pagination(page, pageSize)
	return s.ListingRepo.List(ctx, filter, limit, offset)
}

// Mine lists the caller's own listings, archived ones included.
func (s *ListingService) Mine(ctx context.Context, listerID uint, page, pageSize int) ([]model.Listing, int64, error) {
	if listerID == 0 {
		return nil, 0, util.ErrNotAuthenticated
	}
	limit, offset := pagination(page, pageSize)
	return s.ListingRepo.List(ctx, repository.ListingFilter{ListerID: listerID, IncludeAll: true}, limit, offset)
}

// Detail returns a listing with its occupancy. viewerID may be 0 for
// anonymous visitors. Archived listings are only visible to their owner.
func (s *ListingService) Detail(ctx context.Context, listingID string, viewerID uint) (*ListingDetail, error) {
	if !model.IsUUID(listingID) {
		return nil, util.ErrInvalidData
	}

	var listing model.Listing
	err := s.Cache.Fetch(ctx, ListingKey(listingID), &listing, func(ctx context.Context) (interface{}, error) {
		l, err := s.ListingRepo.FindByID(ctx, listingID)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, util.ErrListingNotFound
			}
			return nil, err
		}
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	if listing.Status == model.ListingArchived && listing.ListerID != viewerID {
		return nil, util.ErrListingNotFound
	}

	detail := &ListingDetail{Listing: &listing}
	if detail.Occupancy, err = s.TenantRepo.Count(ctx, listingID); err != nil {
		return nil, err
	}

	if viewerID != 0 && viewerID != listing.ListerID {
		req, err := s.RequestRepo.FindByPair(ctx, listingID, viewerID)
		switch {
		case err == nil:
			status := req.Status
			detail.MyRequestStatus = &status
		case !repository.IsNotFound(err):
			return nil, err
		}
	}
	return detail, nil
}

// Manage loads the owner's view of a listing. The three reads are
// independent and run concurrently.
func (s *ListingService) Manage(ctx context.Context, listingID string, callerID uint) (*ListingManageView, error) {
	if err := s.ensureOwner(ctx, listingID, callerID); err != nil {
		return nil, err
	}

	view := &ListingManageView{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l, err := s.ListingRepo.FindByID(gctx, listingID)
		if err != nil {
			return err
		}
		view.Listing = l
		return nil
	})
	g.Go(func() error {
		reqs, err := s.RequestRepo.ListByListing(gctx, listingID, model.RequestPending)
		if err != nil {
			return err
		}
		view.PendingRequests = reqs
		return nil
	})
	g.Go(func() error {
		tenants, err := s.TenantRepo.ListByListing(gctx, listingID)
		if err != nil {
			return err
		}
		view.Tenants = tenants
		return nil
	})
	if err := g.Wait(); err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrListingNotFound
		}
		return nil, err
	}
	return view, nil
}

func (s *ListingService) Tenants(ctx context.Context, listingID string, callerID uint) ([]model.ListingTenant, error) {
	if err := s.ensureOwner(ctx, listingID, callerID); err != nil {
		return nil, err
	}
	return s.TenantRepo.ListByListing(ctx, listingID)
}
