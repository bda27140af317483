package models

import (
	"time"
)

type ClaimStatus string

const (
	ClaimStatusPending   ClaimStatus = "pending"
	ClaimStatusConfirmed ClaimStatus = "confirmed"
	ClaimStatusRejected  ClaimStatus = "rejected"
)

// Claim is a receiver's request to take a specific listing.
type Claim struct {
	ID          uint        `json:"id" gorm:"primaryKey"`
	ListingID   uint        `json:"listingId" gorm:"not null;index"`
	ReceiverID  uint        `json:"receiverId" gorm:"not null;index"`
	Status      ClaimStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';check:status IN ('pending','confirmed','rejected')"`
	Message     *string     `json:"message,omitempty" gorm:"type:text"`
	CreatedAt   time.Time   `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time   `json:"updatedAt" gorm:"autoUpdateTime"`
	ConfirmedAt *time.Time  `json:"confirmedAt,omitempty"`
}

func (Claim) TableName() string {
	return "claims"
}

// IsResolved reports whether the claim reached a terminal state.
func (c *Claim) IsResolved() bool {
	return c.Status == ClaimStatusConfirmed || c.Status == ClaimStatusRejected
}

// ClaimCreate represents the request structure for claiming a listing
type ClaimCreate struct {
	ListingID  uint    `json:"listingId" binding:"required"`
	ReceiverID uint    `json:"receiverId"`
	Message    *string `json:"message"`
}

// ClaimUpdate represents a donor's decision on a claim
type ClaimUpdate struct {
	Status ClaimStatus `json:"status" binding:"required"`
}

type ClaimFilter struct {
	ListingID  uint
	ReceiverID uint
	Status     ClaimStatus
}
