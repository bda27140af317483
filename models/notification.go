package models

import (
	"time"
)

type NotificationType string

const (
	NotificationNewClaim         NotificationType = "new_claim"
	NotificationClaimConfirmed   NotificationType = "claim_confirmed"
	NotificationClaimRejected    NotificationType = "claim_rejected"
	NotificationListingUpdated   NotificationType = "listing_updated"
	NotificationListingExpired   NotificationType = "listing_expired"
	NotificationListingDeleted   NotificationType = "listing_deleted"
	NotificationPickupReminder   NotificationType = "pickup_reminder"
	NotificationPickupCompleted  NotificationType = "pickup_completed"
	NotificationNewListingNearby NotificationType = "new_listing_nearby"
	NotificationSystem           NotificationType = "system"
)

type Notification struct {
	ID        uint             `json:"id" gorm:"primaryKey"`
	UserID    uint             `json:"userId" gorm:"not null;index"`
	Type      NotificationType `json:"type" gorm:"type:varchar(40);not null"`
	Title     string           `json:"title" gorm:"size:255;not null"`
	Message   string           `json:"message" gorm:"type:text;not null"`
	ListingID *uint            `json:"listingId,omitempty"`
	ClaimID   *uint            `json:"claimId,omitempty"`
	Read      bool             `json:"read" gorm:"not null;default:false;index"`
	CreatedAt time.Time        `json:"createdAt" gorm:"autoCreateTime;index"`
}

func (Notification) TableName() string {
	return "notifications"
}

func IsValidNotificationType(t NotificationType) bool {
	switch t {
	case NotificationNewClaim, NotificationClaimConfirmed, NotificationClaimRejected,
		NotificationListingUpdated, NotificationListingExpired, NotificationListingDeleted,
		NotificationPickupReminder, NotificationPickupCompleted, NotificationNewListingNearby,
		NotificationSystem:
		return true
	default:
		return false
	}
}

// NotificationCreate represents the request structure for creating a notification
type NotificationCreate struct {
	UserID    uint             `json:"userId" binding:"required"`
	Type      NotificationType `json:"type" binding:"required"`
	Title     string           `json:"title" binding:"required"`
	Message   string           `json:"message" binding:"required"`
	ListingID *uint            `json:"listingId"`
	ClaimID   *uint            `json:"claimId"`
}

// NotificationSnapshot is what live streams push to a client.
type NotificationSnapshot struct {
	UnreadCount   int64          `json:"unreadCount"`
	Notifications []Notification `json:"notifications"`
}
