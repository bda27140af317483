package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	applog "food-share-server/logger"
	"food-share-server/models"
	"food-share-server/utils"
)

// SeedPassword is the password of every seeded account
const SeedPassword = "password123"

// SeedResult reports how many rows the seed inserted
type SeedResult struct {
	Users         int `json:"users"`
	Listings      int `json:"listings"`
	Claims        int `json:"claims"`
	Notifications int `json:"notifications"`
}

// SeedService replaces all data with a small demo dataset
type SeedService struct {
	db            *gorm.DB
	notifications *NotificationService
}

func NewSeedService(db *gorm.DB, notifications *NotificationService) *SeedService {
	return &SeedService{db: db, notifications: notifications}
}

type seedListing struct {
	donor       int
	title       string
	description string
	foodType    string
	quantity    string
	location    models.Location
	pickupIn    time.Duration
	window      time.Duration
}

// Seed wipes users, listings, claims and notifications, then inserts mock data.
func (s *SeedService) Seed(ctx context.Context) (*SeedResult, error) {
	hash, err := utils.HashPassword(SeedPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash seed password: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Minute)
	phone := "+1-555-0100"

	users := []models.User{
		{Name: "Green Grocer", Email: "grocer@example.com", Role: models.RoleDonor, Phone: &phone,
			Location: models.Location{Lat: 40.7128, Lng: -74.0060, Address: "12 Market St, New York, NY"}},
		{Name: "Sunrise Bakery", Email: "bakery@example.com", Role: models.RoleDonor,
			Location: models.Location{Lat: 40.7306, Lng: -73.9866, Address: "88 Baker Ave, New York, NY"}},
		{Name: "Community Shelter", Email: "shelter@example.com", Role: models.RoleReceiver,
			Location: models.Location{Lat: 40.7200, Lng: -74.0000, Address: "5 Hope Rd, New York, NY"}},
		{Name: "Food Bank East", Email: "foodbank@example.com", Role: models.RoleReceiver,
			Location: models.Location{Lat: 40.7500, Lng: -73.9700, Address: "300 East Blvd, New York, NY"}},
	}

	listings := []seedListing{
		{0, "Fresh vegetables", "Mixed seasonal vegetables from today's market, washed and boxed.",
			"produce", "3 boxes", users[0].Location, 2 * time.Hour, 24 * time.Hour},
		{0, "Dairy products", "Milk and yogurt close to their best-before date, kept refrigerated.",
			"dairy", "10 items", users[0].Location, 4 * time.Hour, 12 * time.Hour},
		{1, "Day-old bread", "Assorted loaves and rolls baked yesterday.",
			"bakery", "2 bags", users[1].Location, time.Hour, 8 * time.Hour},
		{1, "Pastries", "Croissants and muffins left over from the morning shift.",
			"bakery", "24 pieces", users[1].Location, 3 * time.Hour, 6 * time.Hour},
	}

	result := &SeedResult{}
	var note *models.Notification

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.Notification{}, &models.Claim{}, &models.FoodListing{}, &models.User{}} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return fmt.Errorf("failed to clear %T: %w", model, err)
			}
		}

		for i := range users {
			users[i].PasswordHash = hash
			if err := tx.Create(&users[i]).Error; err != nil {
				return fmt.Errorf("failed to seed user %s: %w", users[i].Email, err)
			}
		}
		result.Users = len(users)

		created := make([]models.FoodListing, 0, len(listings))
		for _, l := range listings {
			pickup := now.Add(l.pickupIn)
			listing := models.FoodListing{
				DonorID:     users[l.donor].ID,
				Title:       l.title,
				Description: l.description,
				FoodType:    l.foodType,
				Quantity:    l.quantity,
				Location:    l.location,
				PickupTime:  pickup,
				ExpiryTime:  pickup.Add(l.window),
				Status:      models.ListingStatusAvailable,
			}
			if err := tx.Create(&listing).Error; err != nil {
				return fmt.Errorf("failed to seed listing %q: %w", l.title, err)
			}
			created = append(created, listing)
		}
		result.Listings = len(created)

		// the bread is already claimed by the shelter and waits for the donor
		bread := created[2]
		receiver := users[2]
		claimedAt := now
		if err := tx.Model(&models.FoodListing{}).Where("id = ?", bread.ID).Updates(map[string]interface{}{
			"status":     models.ListingStatusClaimed,
			"claimed_by": receiver.ID,
			"claimed_at": claimedAt,
		}).Error; err != nil {
			return fmt.Errorf("failed to seed claimed listing: %w", err)
		}

		message := "We can pick this up right after lunch."
		claim := models.Claim{ListingID: bread.ID, ReceiverID: receiver.ID, Status: models.ClaimStatusPending, Message: &message}
		if err := tx.Create(&claim).Error; err != nil {
			return fmt.Errorf("failed to seed claim: %w", err)
		}
		result.Claims = 1

		note = &models.Notification{
			UserID:    bread.DonorID,
			Type:      models.NotificationNewClaim,
			Title:     "New Claim",
			Message:   fmt.Sprintf("Someone claimed %q.", bread.Title),
			ListingID: &bread.ID,
			ClaimID:   &claim.ID,
		}
		if err := s.notifications.insert(tx, note); err != nil {
			return err
		}
		result.Notifications = 1
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifications.publish(ctx, note)
	applog.Log.WithField("users", result.Users).WithField("listings", result.Listings).Info("✨ Database seeded")
	return result, nil
}
