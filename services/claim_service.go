package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	applog "food-share-server/logger"
	"food-share-server/metrics"
	"food-share-server/models"
)

// ClaimService binds receivers to listings and resolves their claims.
type ClaimService struct {
	db            *gorm.DB
	notifications *NotificationService
	now           func() time.Time
}

func NewClaimService(db *gorm.DB, notifications *NotificationService) *ClaimService {
	return &ClaimService{
		db:            db,
		notifications: notifications,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Create claims an available listing for in.ReceiverID.
//
// The claim row, the listing flip and the donor notification commit together.
// The flip only matches a listing that is still available, so of two
// concurrent claims exactly one wins and the loser leaves no claim row.
func (s *ClaimService) Create(ctx context.Context, in models.ClaimCreate) (*models.Claim, error) {
	var (
		claim models.Claim
		note  *models.Notification
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		listing, err := getListing(tx, in.ListingID)
		if err != nil {
			return err
		}

		var receiver models.User
		if err := tx.Select("id").First(&receiver, in.ReceiverID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("receiver %d: %w", in.ReceiverID, ErrNotFound)
			}
			return fmt.Errorf("failed to get receiver: %w", err)
		}

		if listing.Status != models.ListingStatusAvailable {
			return fmt.Errorf("listing %d is %s: %w", listing.ID, listing.Status, ErrListingUnavailable)
		}

		now := s.now()
		res := tx.Model(&models.FoodListing{}).
			Where("id = ? AND status = ?", listing.ID, models.ListingStatusAvailable).
			Updates(map[string]interface{}{
				"status":     models.ListingStatusClaimed,
				"claimed_by": in.ReceiverID,
				"claimed_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to claim listing: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("listing %d was claimed concurrently: %w", listing.ID, ErrListingUnavailable)
		}

		claim = models.Claim{
			ListingID:  listing.ID,
			ReceiverID: in.ReceiverID,
			Status:     models.ClaimStatusPending,
			Message:    in.Message,
		}
		if err := tx.Create(&claim).Error; err != nil {
			return fmt.Errorf("failed to create claim: %w", err)
		}

		listingID, claimID := listing.ID, claim.ID
		note = &models.Notification{
			UserID:    listing.DonorID,
			Type:      models.NotificationNewClaim,
			Title:     "New Claim",
			Message:   fmt.Sprintf("Someone claimed %q.", listing.Title),
			ListingID: &listingID,
			ClaimID:   &claimID,
		}
		return s.notifications.insert(tx, note)
	})
	if err != nil {
		if errors.Is(err, ErrListingUnavailable) {
			metrics.RecordClaimOutcome("unavailable")
		}
		return nil, err
	}

	metrics.RecordClaimOutcome("created")
	applog.Log.WithFields(logrus.Fields{
		"claim_id":    claim.ID,
		"listing_id":  claim.ListingID,
		"receiver_id": claim.ReceiverID,
	}).Info("🤝 Claim created")

	s.notifications.publish(ctx, note)
	return &claim, nil
}

// Update confirms or rejects a pending claim and notifies the receiver.
// The listing keeps its claimed status either way.
func (s *ClaimService) Update(ctx context.Context, id uint, status models.ClaimStatus) (*models.Claim, error) {
	if status != models.ClaimStatusConfirmed && status != models.ClaimStatusRejected {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var (
		claim *models.Claim
		note  *models.Notification
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		claim, err = getClaim(tx, id)
		if err != nil {
			return err
		}
		if claim.IsResolved() {
			return fmt.Errorf("claim %d is %s: %w", id, claim.Status, ErrClaimResolved)
		}

		var confirmedAt *time.Time
		if status == models.ClaimStatusConfirmed {
			now := s.now()
			confirmedAt = &now
		}

		res := tx.Model(&models.Claim{}).
			Where("id = ? AND status = ?", id, models.ClaimStatusPending).
			Updates(map[string]interface{}{
				"status":       status,
				"confirmed_at": confirmedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update claim: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("claim %d was resolved concurrently: %w", id, ErrClaimResolved)
		}
		claim.Status = status
		claim.ConfirmedAt = confirmedAt

		title := "your listing"
		if listing, err := getListing(tx, claim.ListingID); err == nil {
			title = fmt.Sprintf("%q", listing.Title)
		}

		listingID, claimID := claim.ListingID, claim.ID
		note = &models.Notification{
			UserID:    claim.ReceiverID,
			ListingID: &listingID,
			ClaimID:   &claimID,
		}
		if status == models.ClaimStatusConfirmed {
			note.Type = models.NotificationClaimConfirmed
			note.Title = "Claim Confirmed"
			note.Message = fmt.Sprintf("Your claim for %s was confirmed. Please pick it up on time.", title)
		} else {
			note.Type = models.NotificationClaimRejected
			note.Title = "Claim Rejected"
			note.Message = fmt.Sprintf("Your claim for %s was declined by the donor.", title)
		}
		return s.notifications.insert(tx, note)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordClaimOutcome(string(status))
	s.notifications.publish(ctx, note)

	return s.Get(ctx, id)
}

func (s *ClaimService) Get(ctx context.Context, id uint) (*models.Claim, error) {
	return getClaim(s.db.WithContext(ctx), id)
}

func getClaim(tx *gorm.DB, id uint) (*models.Claim, error) {
	var claim models.Claim
	if err := tx.First(&claim, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("claim %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return &claim, nil
}

// List returns claims matching filter, newest first
func (s *ClaimService) List(ctx context.Context, filter models.ClaimFilter) ([]models.Claim, error) {
	query := s.db.WithContext(ctx).Model(&models.Claim{})
	if filter.ListingID != 0 {
		query = query.Where("listing_id = ?", filter.ListingID)
	}
	if filter.ReceiverID != 0 {
		query = query.Where("receiver_id = ?", filter.ReceiverID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	claims := []models.Claim{}
	if err := query.Order("created_at DESC").Order("id DESC").Find(&claims).Error; err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	return claims, nil
}

func (s *ClaimService) ListByListing(ctx context.Context, listingID uint) ([]models.Claim, error) {
	return s.List(ctx, models.ClaimFilter{ListingID: listingID})
}

func (s *ClaimService) ListByReceiver(ctx context.Context, receiverID uint) ([]models.Claim, error) {
	return s.List(ctx, models.ClaimFilter{ReceiverID: receiverID})
}
