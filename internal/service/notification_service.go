package service

import (
	"context"
	"dorm_match_backend/internal/model"
	"dorm_match_backend/internal/repository"
	"dorm_match_backend/internal/util"
	"time"
)

// RequesterSummary is the display profile shown next to a lister notification.
type RequesterSummary struct {
	ID         uint    `json:"id"`
	Name       string  `json:"name"`
	Avatar     string  `json:"avatar"`
	University *string `json:"university"`
	Major      *string `json:"major"`
}

type ListerNotification struct {
	RequestID    string              `json:"requestId"`
	ListingID    string              `json:"listingId"`
	ListingTitle string              `json:"listingTitle"`
	Status       model.RequestStatus `json:"status"`
	Message      string              `json:"message"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
	Requester    RequesterSummary    `json:"requester"`
}

type ListerNotifications struct {
	Pending      []ListerNotification `json:"pending"`
	Resolved     []ListerNotification `json:"resolved"`
	PendingCount int                  `json:"pendingCount"`
}

type StudentNotification struct {
	RequestID    string              `json:"requestId"`
	ListingID    string              `json:"listingId"`
	ListingTitle string              `json:"listingTitle"`
	ListingCity  string              `json:"listingCity"`
	Status       model.RequestStatus `json:"status"`
	Unread       bool                `json:"unread"`
	ReadAt       *time.Time          `json:"readAt"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

type StudentNotifications struct {
	Items       []StudentNotification `json:"items"`
	UnreadCount int                   `json:"unreadCount"`
	UnreadIDs   []string              `json:"unreadIds"`
}

type NotificationCounts struct {
	PendingRequests int64 `json:"pendingRequests"`
	UnreadUpdates   int64 `json:"unreadUpdates"`
}

// NotificationService derives both notification feeds from tenant_requests.
// Nothing is stored separately.
type NotificationService struct {
	RequestRepo *repository.TenantRequestRepository
	Cache       *CacheService
}

func NewNotificationService(requestRepo *repository.TenantRequestRepository, cache *CacheService) *NotificationService {
	return &NotificationService{RequestRepo: requestRepo, Cache: cache}
}

func (s *NotificationService) ListerNotifications(ctx context.Context, listerID uint) (*ListerNotifications, error) {
	if listerID == 0 {
		return nil, util.ErrNotAuthenticated
	}
	var out ListerNotifications
	err := s.Cache.Fetch(ctx, ListerNotificationsKey(listerID), &out, func(ctx context.Context) (interface{}, error) {
		rows, err := s.RequestRepo.ListForLister(ctx, listerID, util.NotificationLimit)
		if err != nil {
			return nil, err
		}
		return buildListerNotifications(rows), nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func buildListerNotifications(rows []repository.ListerRequestRow) *ListerNotifications {
	out := &ListerNotifications{
		Pending:  []ListerNotification{},
		Resolved: []ListerNotification{},
	}
	for _, r := range rows {
		n := ListerNotification{
			RequestID:    r.RequestID,
			ListingID:    r.ListingID,
			ListingTitle: r.ListingTitle,
			Status:       r.Status,
			Message:      r.Message,
			CreatedAt:    r.CreatedAt,
			UpdatedAt:    r.UpdatedAt,
			Requester: RequesterSummary{
				ID:         r.RequesterID,
				Name:       r.RequesterName,
				Avatar:     r.RequesterAvatar,
				University: r.RequesterUniversity,
				Major:      r.RequesterMajor,
			},
		}
		if r.Status == model.RequestPending {
			out.Pending = append(out.Pending, n)
		} else {
			out.Resolved = append(out.Resolved, n)
		}
	}
	out.PendingCount = len(out.Pending)
	return out
}

func (s *NotificationService) StudentNotifications(ctx context.Context, requesterID uint) (*StudentNotifications, error) {
	if requesterID == 0 {
		return nil, util.ErrNotAuthenticated
	}
	var out StudentNotifications
	err := s.Cache.Fetch(ctx, StudentNotificationsKey(requesterID), &out, func(ctx context.Context) (interface{}, error) {
		rows, err := s.RequestRepo.ListForRequester(ctx, requesterID, util.NotificationLimit)
		if err != nil {
			return nil, err
		}
		return buildStudentNotifications(rows), nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func buildStudentNotifications(rows []repository.StudentRequestRow) *StudentNotifications {
	out := &StudentNotifications{
		Items:     make([]StudentNotification, 0, len(rows)),
		UnreadIDs: []string{},
	}
	for _, r := range rows {
		n := StudentNotification{
			RequestID:    r.RequestID,
			ListingID:    r.ListingID,
			ListingTitle: deref(r.ListingTitle),
			ListingCity:  deref(r.ListingCity),
			Status:       r.Status,
			Unread:       r.ReadAt == nil,
			ReadAt:       r.ReadAt,
			CreatedAt:    r.CreatedAt,
			UpdatedAt:    r.UpdatedAt,
		}
		if n.Unread {
			out.UnreadIDs = append(out.UnreadIDs, r.RequestID)
		}
		out.Items = append(out.Items, n)
	}
	out.UnreadCount = len(out.UnreadIDs)
	return out
}

// UnreadCounts returns the header badge numbers for the caller's role.
// Admins get both.
func (s *NotificationService) UnreadCounts(ctx context.Context, userID uint, role model.UserRole) (*NotificationCounts, error) {
	if userID == 0 {
		return nil, util.ErrNotAuthenticated
	}
	var out NotificationCounts
	err := s.Cache.Fetch(ctx, NotificationCountsKey(userID), &out, func(ctx context.Context) (interface{}, error) {
		var counts NotificationCounts
		var err error
		if role == model.Lister || role == model.Admin {
			if counts.PendingRequests, err = s.RequestRepo.CountPendingForLister(ctx, userID); err != nil {
				return nil, err
			}
		}
		if role == model.Student || role == model.Admin {
			if counts.UnreadUpdates, err = s.RequestRepo.CountUnreadForRequester(ctx, userID); err != nil {
				return nil, err
			}
		}
		return counts, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
