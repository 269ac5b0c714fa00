package model

import (
	"time"

	"gorm.io/datatypes"
)

type ListingStatus string

const (
	ListingActive   ListingStatus = "active"
	ListingArchived ListingStatus = "archived"
)

// Listing is a room or apartment published by a lister.
// Tenant requests are only accepted when MaxOccupants > 1.
type Listing struct {
	UUIDBase
	ListerID      uint           `gorm:"index;not null" json:"listerId"`
	Lister        *User          `gorm:"foreignKey:ListerID;references:ID;constraint:false" json:"lister,omitempty"`
	Title         string         `gorm:"size:150;not null" json:"title"`
	Description   string         `gorm:"type:text" json:"description"`
	Address       string         `gorm:"size:255" json:"address"`
	City          string         `gorm:"size:100;index" json:"city"`
	Latitude      *float64       `json:"latitude,omitempty"`
	Longitude     *float64       `json:"longitude,omitempty"`
	RentCents     int            `gorm:"not null" json:"rentCents"`
	MaxOccupants  int            `gorm:"not null;default:1" json:"maxOccupants"`
	AvailableFrom *time.Time     `json:"availableFrom,omitempty"`
	Status        ListingStatus  `gorm:"size:20;default:'active';index" json:"status"`
	Amenities     datatypes.JSON `json:"amenities,omitempty"`
	Photos        []ListingPhoto `gorm:"foreignKey:ListingID;constraint:false" json:"photos,omitempty"`
}

func (Listing) TableName() string {
	return "listings"
}

func (l *Listing) AcceptsRequests() bool {
	return l.MaxOccupants > 1
}

type ListingPhoto struct {
	UUIDBase
	ListingID    string `gorm:"type:varchar(36);index;not null" json:"listingId"`
	ObjectKey    string `gorm:"size:255;not null" json:"-"`
	URL          string `gorm:"size:512;not null" json:"url"`
	ThumbnailKey string `gorm:"size:255" json:"-"`
	ThumbnailURL string `gorm:"size:512" json:"thumbnailUrl,omitempty"`
	Position     int    `gorm:"default:0" json:"position"`
}

func (ListingPhoto) TableName() string {
	return "listing_photos"
}
