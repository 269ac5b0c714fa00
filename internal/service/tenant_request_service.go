package service

import (
	"context"
	"dorm_match_backend/internal/model"
	"dorm_match_backend/internal/repository"
	"dorm_match_backend/internal/util"
	"dorm_match_backend/pkg/logger"
	"dorm_match_backend/pkg/monitoring"
	"dorm_match_backend/pkg/tracing"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TenantRequestService is the only writer of tenant_requests.status,
// tenant_requests.read_at and listing_tenants.
type TenantRequestService struct {
	DB          *gorm.DB
	RequestRepo *repository.TenantRequestRepository
	TenantRepo  *repository.ListingTenantRepository
	ListingRepo *repository.ListingRepository
	Cache       *CacheService
	Now         func() time.Time
}

func NewTenantRequestService(
	db *gorm.DB,
	requestRepo *repository.TenantRequestRepository,
	tenantRepo *repository.ListingTenantRepository,
	listingRepo *repository.ListingRepository,
	cache *CacheService,
) *TenantRequestService {
	return &TenantRequestService{
		DB:          db,
		RequestRepo: requestRepo,
		TenantRepo:  tenantRepo,
		ListingRepo: listingRepo,
		Cache:       cache,
		Now:         time.Now,
	}
}

func (s *TenantRequestService) now() time.Time {
	return s.Now().UTC()
}

// Submit creates a pending request for (listingID, requesterID), or reopens
// the pair's rejected/removed row in place.
func (s *TenantRequestService) Submit(ctx context.Context, listingID string, requesterID uint, message string) (req *model.TenantRequest, err error) {
	ctx, span := tracing.Start(ctx, "TenantRequestService.Submit",
		attribute.String("listing_id", listingID),
		attribute.Int64("requester_id", int64(requesterID)))
	defer func() { tracing.End(span, err) }()

	if requesterID == 0 {
		return nil, util.ErrNotAuthenticated
	}
	if !model.IsUUID(listingID) {
		return nil, util.ErrInvalidData
	}

	listing, err := s.ListingRepo.FindByID(ctx, listingID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrListingNotFound
		}
		return nil, err
	}
	// capacity is checked first so a single-occupant listing always gives the same answer
	if !listing.AcceptsRequests() {
		return nil, util.ErrNoTenantRequests
	}
	if utf8.RuneCountInString(message) > model.MaxRequestMessageLen {
		return nil, util.ErrInvalidData
	}
	if listing.ListerID == requesterID {
		return nil, util.ErrOwnListing
	}
	if listing.Status == model.ListingArchived {
		return nil, util.ErrListingArchived
	}

	existing, err := s.RequestRepo.FindByPair(ctx, listingID, requesterID)
	switch {
	case repository.IsNotFound(err):
		req = &model.TenantRequest{
			ListingID:   listingID,
			RequesterID: requesterID,
			Status:      model.RequestPending,
			Message:     message,
			CreatedAt:   s.now(),
			UpdatedAt:   s.now(),
		}
		if err = s.RequestRepo.Create(ctx, req); err != nil {
			if repository.IsDuplicate(err) {
				return nil, util.ErrRequestConflict
			}
			return nil, err
		}
		monitoring.RecordTransition("submit")
	case err != nil:
		return nil, err
	case existing.Status == model.RequestPending:
		return nil, util.ErrDuplicateRequest
	case existing.Status == model.RequestAccepted:
		return nil, util.ErrAlreadyTenant
	default:
		n, err := s.RequestRepo.Reopen(ctx, existing.ID, message, s.now())
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// another submission reopened the row first
			return nil, util.ErrDuplicateRequest
		}
		if req, err = s.RequestRepo.FindByID(ctx, existing.ID); err != nil {
			return nil, err
		}
		monitoring.RecordTransition("reopen")
	}

	logger.Log.Info("tenant request submitted",
		zap.String("request_id", req.ID),
		zap.String("listing_id", listingID),
		zap.Uint("caller_id", requesterID))

	s.Cache.Invalidate(ctx,
		ListerNotificationsKey(listing.ListerID),
		NotificationCountsKey(listing.ListerID),
		StudentNotificationsKey(requesterID),
		NotificationCountsKey(requesterID))
	return req, nil
}

// loadOwned returns the request if callerID owns its listing.
func (s *TenantRequestService) loadOwned(ctx context.Context, requestID string, callerID uint) (*model.TenantRequest, error) {
	if callerID == 0 {
		return nil, util.ErrNotAuthenticated
	}
	if !model.IsUUID(requestID) {
		return nil, util.ErrInvalidData
	}
	req, err := s.RequestRepo.FindByID(ctx, requestID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrRequestNotFound
		}
		return nil, err
	}
	if req.Listing == nil {
		return nil, util.ErrListingNotFound
	}
	if req.Listing.ListerID != callerID {
		return nil, util.ErrUnauthorized
	}
	return req, nil
}

// Accept makes the requester a tenant of the listing. The tenancy row is
// written before the status flips, both inside one transaction.
func (s *TenantRequestService) Accept(ctx context.Context, requestID string, callerID uint) (req *model.TenantRequest, err error) {
	ctx, span := tracing.Start(ctx, "TenantRequestService.Accept",
		attribute.String("request_id", requestID),
		attribute.Int64("caller_id", int64(callerID)))
	defer func() { tracing.End(span, err) }()

	req, err = s.loadOwned(ctx, requestID, callerID)
	if err != nil {
		return nil, err
	}
	if req.Status != model.RequestPending {
		return nil, util.ErrRequestHandled
	}

	now := s.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.TenantRepo.WithTx(tx).Add(ctx, req.ListingID, req.RequesterID)
		if err != nil {
			return err
		}
		if !created {
			logger.Log.Debug("tenancy already present",
				zap.String("listing_id", req.ListingID),
				zap.Uint("user_id", req.RequesterID))
		}

		n, err := s.RequestRepo.WithTx(tx).Transition(ctx, req.ID, model.RequestPending, model.RequestAccepted, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return util.ErrRequestHandled
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	req.Status = model.RequestAccepted
	req.UpdatedAt = now
	monitoring.RecordTransition("accept")
	logger.Log.Info("tenant request accepted",
		zap.String("request_id", req.ID),
		zap.String("listing_id", req.ListingID),
		zap.Uint("caller_id", callerID))

	s.invalidatePair(ctx, callerID, req.RequesterID)
	return req, nil
}

func (s *TenantRequestService) Reject(ctx context.Context, requestID string, callerID uint) (req *model.TenantRequest, err error) {
	ctx, span := tracing.Start(ctx, "TenantRequestService.Reject",
		attribute.String("request_id", requestID),
		attribute.Int64("caller_id", int64(callerID)))
	defer func() { tracing.End(span, err) }()

	req, err = s.loadOwned(ctx, requestID, callerID)
	if err != nil {
		return nil, err
	}
	if req.Status != model.RequestPending {
		return nil, util.ErrRequestHandled
	}

	now := s.now()
	n, err := s.RequestRepo.Transition(ctx, req.ID, model.RequestPending, model.RequestRejected, now)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, util.ErrRequestHandled
	}

	req.Status = model.RequestRejected
	req.UpdatedAt = now
	monitoring.RecordTransition("reject")
	logger.Log.Info("tenant request rejected",
		zap.String("request_id", req.ID),
		zap.String("listing_id", req.ListingID),
		zap.Uint("caller_id", callerID))

	s.invalidatePair(ctx, callerID, req.RequesterID)
	return req, nil
}

// RemoveTenant deletes the tenancy and flips the pair's accepted request to
// removed with read_at cleared. Neither row has to exist.
func (s *TenantRequestService) RemoveTenant(ctx context.Context, listingID string, tenantUserID, callerID uint) (err error) {
	ctx, span := tracing.Start(ctx, "TenantRequestService.RemoveTenant",
		attribute.String("listing_id", listingID),
		attribute.Int64("tenant_id", int64(tenantUserID)),
		attribute.Int64("caller_id", int64(callerID)))
	defer func() { tracing.End(span, err) }()

	if callerID == 0 {
		return util.ErrNotAuthenticated
	}
	if !model.IsUUID(listingID) || tenantUserID == 0 {
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

	now := s.now()
	var deleted, flipped int64
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if deleted, err = s.TenantRepo.WithTx(tx).Remove(ctx, listingID, tenantUserID); err != nil {
			return err
		}
		flipped, err = s.RequestRepo.WithTx(tx).MarkRemoved(ctx, listingID, tenantUserID, now)
		return err
	})
	if err != nil {
		return err
	}

	monitoring.RecordTransition("remove")
	logger.Log.Info("tenant removed",
		zap.String("listing_id", listingID),
		zap.Uint("tenant_id", tenantUserID),
		zap.Uint("caller_id", callerID),
		zap.Int64("tenancies_deleted", deleted),
		zap.Int64("requests_removed", flipped))

	s.invalidatePair(ctx, callerID, tenantUserID)
	return nil
}

// MarkRequesterNotificationsRead stamps read_at on the caller's own unread
// rows among requestIDs. Ids of other requesters are silently ignored.
func (s *TenantRequestService) MarkRequesterNotificationsRead(ctx context.Context, requestIDs []string, callerID uint) (int64, error) {
	if callerID == 0 {
		return 0, util.ErrNotAuthenticated
	}
	if len(requestIDs) == 0 {
		return 0, nil
	}
	// the feed never hands out more ids than this
	if len(requestIDs) > util.NotificationLimit {
		return 0, util.ErrInvalidData
	}
	for _, id := range requestIDs {
		if !model.IsUUID(id) {
			return 0, util.ErrInvalidData
		}
	}

	n, err := s.RequestRepo.MarkRead(ctx, callerID, requestIDs, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		monitoring.RecordTransition("mark_read")
		s.Cache.Invalidate(ctx, StudentNotificationsKey(callerID), NotificationCountsKey(callerID))
	}
	return n, nil
}

func (s *TenantRequestService) invalidatePair(ctx context.Context, listerID, requesterID uint) {
	s.Cache.Invalidate(ctx,
		ListerNotificationsKey(listerID),
		NotificationCountsKey(listerID),
		StudentNotificationsKey(requesterID),
		NotificationCountsKey(requesterID))
}
