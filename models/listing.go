package models

import (
	"time"
)

type ListingStatus string

const (
	ListingStatusAvailable ListingStatus = "available"
	ListingStatusClaimed   ListingStatus = "claimed"
	ListingStatusPickedUp  ListingStatus = "picked_up"
	ListingStatusExpired   ListingStatus = "expired"
)

// FoodListing is a donor's offer of surplus food with a pickup window.
type FoodListing struct {
	ID          uint          `json:"id" gorm:"primaryKey"`
	DonorID     uint          `json:"donorId" gorm:"not null;index"`
	Title       string        `json:"title" gorm:"size:255;not null"`
	Description string        `json:"description" gorm:"type:text"`
	FoodType    string        `json:"foodType" gorm:"size:100;not null;index"`
	Quantity    string        `json:"quantity" gorm:"size:255;not null"`
	Location    Location      `json:"location" gorm:"embedded;embeddedPrefix:location_"`
	PickupTime  time.Time     `json:"pickupTime" gorm:"not null"`
	ExpiryTime  time.Time     `json:"expiryTime" gorm:"not null;index"`
	Status      ListingStatus `json:"status" gorm:"type:varchar(20);not null;default:'available';index"`
	ClaimedBy   *uint         `json:"claimedBy,omitempty"`
	ClaimedAt   *time.Time    `json:"claimedAt,omitempty"`
	ImageURL    *string       `json:"imageUrl,omitempty" gorm:"type:text"`
	AIRating    *float64      `json:"aiRating,omitempty"`
	CreatedAt   time.Time     `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time     `json:"updatedAt" gorm:"autoUpdateTime"`

	ReminderSentAt *time.Time `json:"-"`
}

func (FoodListing) TableName() string {
	return "food_listings"
}

func IsValidListingStatus(status ListingStatus) bool {
	switch status {
	case ListingStatusAvailable, ListingStatusClaimed, ListingStatusPickedUp, ListingStatusExpired:
		return true
	default:
		return false
	}
}

// ListingCreate represents the request structure for creating a listing
type ListingCreate struct {
	DonorID     uint          `json:"donorId" binding:"required"`
	Title       string        `json:"title" binding:"required"`
	Description string        `json:"description"`
	FoodType    string        `json:"foodType" binding:"required"`
	Quantity    string        `json:"quantity" binding:"required"`
	Location    *Location     `json:"location" binding:"required"`
	PickupTime  time.Time     `json:"pickupTime" binding:"required"`
	ExpiryTime  time.Time     `json:"expiryTime" binding:"required"`
	ImageURL    *string       `json:"imageUrl"`
	Status      ListingStatus `json:"status"`
}

// ListingUpdate carries a partial update; nil fields are left untouched.
type ListingUpdate struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	FoodType    *string        `json:"foodType"`
	Quantity    *string        `json:"quantity"`
	Location    *Location      `json:"location"`
	PickupTime  *time.Time     `json:"pickupTime"`
	ExpiryTime  *time.Time     `json:"expiryTime"`
	Status      *ListingStatus `json:"status"`
	ClaimedBy   *uint          `json:"claimedBy"`
	ClaimedAt   *time.Time     `json:"claimedAt"`
	ImageURL    *string        `json:"imageUrl"`
	AIRating    *float64       `json:"aiRating"`
}

// ListingFilter narrows listing queries; zero values mean "any".
type ListingFilter struct {
	Status  ListingStatus
	DonorID uint

	// UnexpiredAt keeps only listings expiring after it when set
	UnexpiredAt time.Time
}
