package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"food-share-server/models"
)

// Stats holds aggregate counts, either platform wide or for one user
type Stats struct {
	Users               *UserCounts      `json:"users,omitempty"`
	Listings            map[string]int64 `json:"listings"`
	Claims              map[string]int64 `json:"claims"`
	UnreadNotifications *int64           `json:"unreadNotifications,omitempty"`
}

type UserCounts struct {
	Total     int64 `json:"total"`
	Donors    int64 `json:"donors"`
	Receivers int64 `json:"receivers"`
}

type StatsService struct {
	db *gorm.DB
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

type statusCount struct {
	Status string
	Count  int64
}

// Global returns platform-wide counts
func (s *StatsService) Global(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)

	users := &UserCounts{}
	if err := db.Model(&models.User{}).Count(&users.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleDonor).Count(&users.Donors).Error; err != nil {
		return nil, fmt.Errorf("failed to count donors: %w", err)
	}
	users.Receivers = users.Total - users.Donors

	listings, err := countByStatus(db.Model(&models.FoodListing{}), listingStatuses())
	if err != nil {
		return nil, err
	}
	claims, err := countByStatus(db.Model(&models.Claim{}), claimStatuses())
	if err != nil {
		return nil, err
	}

	return &Stats{Users: users, Listings: listings, Claims: claims}, nil
}

// ForUser returns counts scoped to one user. Donors see their listings and
// the claims made on them, receivers see their own claims.
func (s *StatsService) ForUser(ctx context.Context, userID uint) (*Stats, error) {
	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.Select("id", "role").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	listingQuery := db.Model(&models.FoodListing{}).Where("donor_id = ?", userID)
	claimQuery := db.Model(&models.Claim{}).Where("receiver_id = ?", userID)
	if user.IsDonor() {
		claimQuery = db.Model(&models.Claim{}).
			Where("listing_id IN (?)", db.Model(&models.FoodListing{}).Select("id").Where("donor_id = ?", userID))
	}

	listings, err := countByStatus(listingQuery, listingStatuses())
	if err != nil {
		return nil, err
	}
	claims, err := countByStatus(claimQuery, claimStatuses())
	if err != nil {
		return nil, err
	}

	var unread int64
	if err := db.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&unread).Error; err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}

	return &Stats{Listings: listings, Claims: claims, UnreadNotifications: &unread}, nil
}

// countByStatus groups query by status; every known status is present in the result
func countByStatus(query *gorm.DB, statuses []string) (map[string]int64, error) {
	var rows []statusCount
	if err := query.Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64, len(statuses)+1)
	for _, status := range statuses {
		counts[status] = 0
	}
	var total int64
	for _, row := range rows {
		counts[row.Status] = row.Count
		total += row.Count
	}
	counts["total"] = total
	return counts, nil
}

func listingStatuses() []string {
	return []string{
		string(models.ListingStatusAvailable),
		string(models.ListingStatusClaimed),
		string(models.ListingStatusPickedUp),
		string(models.ListingStatusExpired),
	}
}

func claimStatuses() []string {
	return []string{
		string(models.ClaimStatusPending),
		string(models.ClaimStatusConfirmed),
		string(models.ClaimStatusRejected),
	}
}
