package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	applog "food-share-server/logger"
	"food-share-server/models"
	"food-share-server/utils"
)

type ListingService struct {
	db             *gorm.DB
	notifications  *NotificationService
	nearbyRadiusKm float64
}

func NewListingService(db *gorm.DB, notifications *NotificationService, nearbyRadiusKm float64) *ListingService {
	return &ListingService{
		db:             db,
		notifications:  notifications,
		nearbyRadiusKm: nearbyRadiusKm,
	}
}

// Create stores a new listing. Status defaults to available.
func (s *ListingService) Create(ctx context.Context, in models.ListingCreate) (*models.FoodListing, error) {
	if in.Location == nil || !utils.IsLocationValid(in.Location.Lat, in.Location.Lng) {
		return nil, ErrInvalidLocation
	}

	status := in.Status
	if status == "" {
		status = models.ListingStatusAvailable
	}
	if !models.IsValidListingStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	listing := &models.FoodListing{
		DonorID:     in.DonorID,
		Title:       in.Title,
		Description: in.Description,
		FoodType:    in.FoodType,
		Quantity:    in.Quantity,
		Location:    *in.Location,
		PickupTime:  in.PickupTime.UTC(),
		ExpiryTime:  in.ExpiryTime.UTC(),
		Status:      status,
		ImageURL:    in.ImageURL,
	}

	if err := s.db.WithContext(ctx).Create(listing).Error; err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	applog.Log.WithFields(logrus.Fields{
		"listing_id": listing.ID,
		"donor_id":   listing.DonorID,
	}).Info("🍲 Listing created")

	if err := s.notifyNearbyReceivers(ctx, listing); err != nil {
		applog.Log.WithError(err).WithField("listing_id", listing.ID).Warn("⚠️ Failed to notify nearby receivers")
	}

	return listing, nil
}

// notifyNearbyReceivers tells receivers within the configured radius about a new listing
func (s *ListingService) notifyNearbyReceivers(ctx context.Context, listing *models.FoodListing) error {
	if s.nearbyRadiusKm <= 0 || listing.Status != models.ListingStatusAvailable {
		return nil
	}
	if !utils.IsLocationSet(listing.Location.Lat, listing.Location.Lng) {
		return nil
	}

	var receivers []models.User
	if err := s.db.WithContext(ctx).Where("role = ?", models.RoleReceiver).Find(&receivers).Error; err != nil {
		return fmt.Errorf("failed to load receivers: %w", err)
	}

	var notes []*models.Notification
	for _, receiver := range receivers {
		if !utils.IsLocationSet(receiver.Location.Lat, receiver.Location.Lng) {
			continue
		}
		if !utils.WithinRadius(listing.Location.Lat, listing.Location.Lng,
			receiver.Location.Lat, receiver.Location.Lng, s.nearbyRadiusKm) {
			continue
		}
		notes = append(notes, &models.Notification{
			UserID:    receiver.ID,
			Type:      models.NotificationNewListingNearby,
			Title:     "New Food Nearby",
			Message:   fmt.Sprintf("%s (%s) is available near you.", listing.Title, listing.Quantity),
			ListingID: &listing.ID,
		})
	}
	if len(notes) == 0 {
		return nil
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.notifications.insert(tx, notes...)
	}); err != nil {
		return err
	}
	s.notifications.publish(ctx, notes...)
	return nil
}

func (s *ListingService) Get(ctx context.Context, id uint) (*models.FoodListing, error) {
	return getListing(s.db.WithContext(ctx), id)
}

func getListing(tx *gorm.DB, id uint) (*models.FoodListing, error) {
	var listing models.FoodListing
	if err := tx.First(&listing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("listing %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &listing, nil
}

// List returns listings matching filter, newest first
func (s *ListingService) List(ctx context.Context, filter models.ListingFilter) ([]models.FoodListing, error) {
	query := s.db.WithContext(ctx).Model(&models.FoodListing{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.DonorID != 0 {
		query = query.Where("donor_id = ?", filter.DonorID)
	}
	if !filter.UnexpiredAt.IsZero() {
		query = query.Where("expiry_time > ?", filter.UnexpiredAt.UTC())
	}

	listings := []models.FoodListing{}
	if err := query.Order("created_at DESC").Order("id DESC").Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return listings, nil
}

func (s *ListingService) ListByDonor(ctx context.Context, donorID uint) ([]models.FoodListing, error) {
	return s.List(ctx, models.ListingFilter{DonorID: donorID})
}

// ListAvailable returns unexpired available listings, soonest pickup first
func (s *ListingService) ListAvailable(ctx context.Context, now time.Time) ([]models.FoodListing, error) {
	return s.Search(ctx, "", "", now)
}

// likeEscaper makes user input match literally inside a LIKE pattern
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search filters available listings by a case-insensitive substring of
// title, description or food type, and optionally by exact food type.
func (s *ListingService) Search(ctx context.Context, q, foodType string, now time.Time) ([]models.FoodListing, error) {
	query := s.db.WithContext(ctx).
		Where("status = ? AND expiry_time > ?", models.ListingStatusAvailable, now.UTC())

	if q = strings.TrimSpace(q); q != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(q)) + "%"
		query = query.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' OR LOWER(food_type) LIKE ? ESCAPE '\')`, like, like, like)
	}
	if foodType = strings.TrimSpace(foodType); foodType != "" {
		query = query.Where("LOWER(food_type) = ?", strings.ToLower(foodType))
	}

	listings := []models.FoodListing{}
	if err := query.Order("pickup_time ASC").Order("id ASC").Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to search listings: %w", err)
	}
	return listings, nil
}

// Update merges the non-nil fields of in into the listing. Any status may be
// set here; the claim flow is the only path that checks transitions.
func (s *ListingService) Update(ctx context.Context, id uint, in models.ListingUpdate) (*models.FoodListing, error) {
	listing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = *in.Title
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.FoodType != nil {
		updates["food_type"] = *in.FoodType
	}
	if in.Quantity != nil {
		updates["quantity"] = *in.Quantity
	}
	if in.Location != nil {
		if !utils.IsLocationValid(in.Location.Lat, in.Location.Lng) {
			return nil, ErrInvalidLocation
		}
		updates["location_lat"] = in.Location.Lat
		updates["location_lng"] = in.Location.Lng
		updates["location_address"] = in.Location.Address
	}
	if in.PickupTime != nil {
		updates["pickup_time"] = in.PickupTime.UTC()
	}
	if in.ExpiryTime != nil {
		updates["expiry_time"] = in.ExpiryTime.UTC()
	}
	if in.ClaimedBy != nil {
		updates["claimed_by"] = *in.ClaimedBy
	}
	if in.ClaimedAt != nil {
		updates["claimed_at"] = in.ClaimedAt.UTC()
	}
	if in.Status != nil {
		if !models.IsValidListingStatus(*in.Status) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *in.Status)
		}
		updates["status"] = *in.Status
		// a reopened listing has no claimant
		if *in.Status == models.ListingStatusAvailable {
			updates["claimed_by"] = nil
			updates["claimed_at"] = nil
			updates["reminder_sent_at"] = nil
		}
	}
	if in.ImageURL != nil {
		updates["image_url"] = *in.ImageURL
	}
	if in.AIRating != nil {
		updates["ai_rating"] = *in.AIRating
	}

	if len(updates) == 0 {
		return listing, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.FoodListing{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update listing: %w", err)
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.notifyClaimantOfUpdate(ctx, listing.Status, updated)
	return updated, nil
}

func (s *ListingService) notifyClaimantOfUpdate(ctx context.Context, previous models.ListingStatus, listing *models.FoodListing) {
	if listing.ClaimedBy == nil {
		return
	}

	note := &models.Notification{
		UserID:    *listing.ClaimedBy,
		Type:      models.NotificationListingUpdated,
		Title:     "Listing Updated",
		Message:   fmt.Sprintf("The donor updated %q.", listing.Title),
		ListingID: &listing.ID,
	}
	if listing.Status == models.ListingStatusPickedUp && previous != models.ListingStatusPickedUp {
		note.Type = models.NotificationPickupCompleted
		note.Title = "Pickup Completed"
		note.Message = fmt.Sprintf("Pickup of %q is marked as completed. Thank you!", listing.Title)
	}

	if err := s.notifications.insert(s.db.WithContext(ctx), note); err != nil {
		applog.Log.WithError(err).WithField("listing_id", listing.ID).Warn("⚠️ Failed to notify claimant")
		return
	}
	s.notifications.publish(ctx, note)
}

// Delete removes a listing together with its claims
func (s *ListingService) Delete(ctx context.Context, id uint) error {
	var note *models.Notification

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		listing, err := getListing(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Where("listing_id = ?", id).Delete(&models.Claim{}).Error; err != nil {
			return fmt.Errorf("failed to delete claims: %w", err)
		}
		if err := tx.Delete(&models.FoodListing{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete listing: %w", err)
		}

		if listing.ClaimedBy != nil && listing.Status == models.ListingStatusClaimed {
			note = &models.Notification{
				UserID:  *listing.ClaimedBy,
				Type:    models.NotificationListingDeleted,
				Title:   "Listing Removed",
				Message: fmt.Sprintf("%q was removed by the donor.", listing.Title),
			}
			return s.notifications.insert(tx, note)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifications.publish(ctx, note)
	return nil
}

// SetAIRating stores a quality rating, clamped to 0–5
func (s *ListingService) SetAIRating(ctx context.Context, id uint, rating float64) (*models.FoodListing, error) {
	rating = clampRating(rating)
	return s.Update(ctx, id, models.ListingUpdate{AIRating: &rating})
}

// ExpireOverdue flips available listings past their expiry to expired and tells the donors.
func (s *ListingService) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()

	var overdue []models.FoodListing
	if err := s.db.WithContext(ctx).
		Where("status = ? AND expiry_time <= ?", models.ListingStatusAvailable, now).
		Find(&overdue).Error; err != nil {
		return 0, fmt.Errorf("failed to find overdue listings: %w", err)
	}

	expired := 0
	for i := range overdue {
		listing := overdue[i]
		var note *models.Notification

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.FoodListing{}).
				Where("id = ? AND status = ?", listing.ID, models.ListingStatusAvailable).
				Update("status", models.ListingStatusExpired)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}
			note = &models.Notification{
				UserID:    listing.DonorID,
				Type:      models.NotificationListingExpired,
				Title:     "Listing Expired",
				Message:   fmt.Sprintf("%q expired before anyone claimed it.", listing.Title),
				ListingID: &listing.ID,
			}
			return s.notifications.insert(tx, note)
		})
		if err != nil {
			applog.Log.WithError(err).WithField("listing_id", listing.ID).Error("❌ Failed to expire listing")
			continue
		}
		if note != nil {
			expired++
			s.notifications.publish(ctx, note)
		}
	}

	return expired, nil
}

// SendPickupReminders reminds claimants whose pickup starts within lead. Each
// listing is reminded at most once.
func (s *ListingService) SendPickupReminders(ctx context.Context, now time.Time, lead time.Duration) (int, error) {
	now = now.UTC()

	var due []models.FoodListing
	if err := s.db.WithContext(ctx).
		Where("status = ? AND claimed_by IS NOT NULL AND reminder_sent_at IS NULL", models.ListingStatusClaimed).
		Where("pickup_time > ? AND pickup_time <= ?", now, now.Add(lead)).
		Find(&due).Error; err != nil {
		return 0, fmt.Errorf("failed to find due pickups: %w", err)
	}

	sent := 0
	for i := range due {
		listing := due[i]
		note := &models.Notification{
			UserID:    *listing.ClaimedBy,
			Type:      models.NotificationPickupReminder,
			Title:     "Pickup Reminder",
			Message:   fmt.Sprintf("Pickup for %q starts at %s.", listing.Title, listing.PickupTime.Format(time.Kitchen)),
			ListingID: &listing.ID,
		}

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.FoodListing{}).
				Where("id = ?", listing.ID).
				Update("reminder_sent_at", now).Error; err != nil {
				return err
			}
			return s.notifications.insert(tx, note)
		})
		if err != nil {
			applog.Log.WithError(err).WithField("listing_id", listing.ID).Error("❌ Failed to send pickup reminder")
			continue
		}
		sent++
		s.notifications.publish(ctx, note)
	}

	return sent, nil
}

func clampRating(rating float64) float64 {
	switch {
	case rating < 0:
		return 0
	case rating > 5:
		return 5
	default:
		return rating
	}
}
