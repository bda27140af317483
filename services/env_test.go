package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"food-share-server/database/dbtest"
	"food-share-server/models"
	"food-share-server/realtime"
)

var userSeq int64

type testEnv struct {
	db            *gorm.DB
	hub           *realtime.Hub
	notifications *NotificationService
	listings      *ListingService
	claims        *ClaimService
	now           time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := dbtest.Open(t)
	hub := realtime.NewHub()
	notifications := NewNotificationService(db, hub)

	env := &testEnv{
		db:            db,
		hub:           hub,
		notifications: notifications,
		listings:      NewListingService(db, notifications, 10),
		claims:        NewClaimService(db, notifications),
		now:           time.Now().UTC().Truncate(time.Second),
	}
	env.claims.now = func() time.Time { return env.now }
	return env
}

func (e *testEnv) user(t *testing.T, role models.UserRole, loc models.Location) *models.User {
	t.Helper()

	n := atomic.AddInt64(&userSeq, 1)
	u := &models.User{
		Name:     fmt.Sprintf("%s %d", role, n),
		Email:    fmt.Sprintf("%s-%d@example.com", role, n),
		Role:     role,
		Location: loc,
	}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) listing(t *testing.T, donor *models.User, mutate ...func(*models.ListingCreate)) *models.FoodListing {
	t.Helper()

	in := models.ListingCreate{
		DonorID:     donor.ID,
		Title:       "Fresh bread",
		Description: "Sourdough loaves baked this morning",
		FoodType:    "bakery",
		Quantity:    "2 bags",
		Location:    &models.Location{Lat: 40.7128, Lng: -74.0060, Address: "1 Main St"},
		PickupTime:  e.now.Add(2 * time.Hour),
		ExpiryTime:  e.now.Add(6 * time.Hour),
	}
	for _, m := range mutate {
		m(&in)
	}

	listing, err := e.listings.Create(context.Background(), in)
	require.NoError(t, err)
	return listing
}

func (e *testEnv) countNotifications(t *testing.T, userID uint, typ models.NotificationType) int64 {
	t.Helper()

	var n int64
	require.NoError(t, e.db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", userID, typ).
		Count(&n).Error)
	return n
}

func (e *testEnv) countClaims(t *testing.T, listingID uint) int64 {
	t.Helper()

	var n int64
	require.NoError(t, e.db.Model(&models.Claim{}).Where("listing_id = ?", listingID).Count(&n).Error)
	return n
}
