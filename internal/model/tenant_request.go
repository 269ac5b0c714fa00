package model

import (
	"time"

	"gorm.io/gorm"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
	RequestRemoved  RequestStatus = "removed"
)

// Reopenable reports whether a new submission may reuse a row in this state.
func (s RequestStatus) Reopenable() bool {
	return s == RequestRejected || s == RequestRemoved
}

const MaxRequestMessageLen = 300

// TenantRequest is one row per (listing, requester). Rows are never deleted,
// a rejected or removed row is reopened in place on the next submission.
// ReadAt == nil means the requester has an unseen status change.
type TenantRequest struct {
	ID          string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ListingID   string        `gorm:"type:varchar(36);not null;uniqueIndex:idx_tenant_requests_pair,priority:1" json:"listingId"`
	Listing     *Listing      `gorm:"foreignKey:ListingID;references:ID;constraint:false" json:"listing,omitempty"`
	RequesterID uint          `gorm:"not null;index;uniqueIndex:idx_tenant_requests_pair,priority:2" json:"requesterId"`
	Requester   *User         `gorm:"foreignKey:RequesterID;references:ID;constraint:false" json:"requester,omitempty"`
	Status      RequestStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Message     string        `gorm:"size:300" json:"message"`
	ReadAt      *time.Time    `json:"readAt"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

func (TenantRequest) TableName() string {
	return "tenant_requests"
}

func (r *TenantRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = GenerateUUID()
	}
	return nil
}

// ListingTenant is a confirmed occupant of a listing. Rows are hard-deleted
// so the same pair can be accepted again later.
type ListingTenant struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ListingID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_listing_tenants_pair,priority:1" json:"listingId"`
	UserID    uint      `gorm:"not null;index;uniqueIndex:idx_listing_tenants_pair,priority:2" json:"userId"`
	User      *User     `gorm:"foreignKey:UserID;references:ID;constraint:false" json:"user,omitempty"`
	AddedAt   time.Time `gorm:"autoCreateTime" json:"addedAt"`
}

func (ListingTenant) TableName() string {
	return "listing_tenants"
}

func (t *ListingTenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = GenerateUUID()
	}
	return nil
}
