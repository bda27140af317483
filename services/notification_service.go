package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	applog "food-share-server/logger"
	"food-share-server/metrics"
	"food-share-server/models"
	"food-share-server/realtime"
)

// NotificationService stores notifications and announces them to live streams.
type NotificationService struct {
	db        *gorm.DB
	publisher realtime.Publisher
}

func NewNotificationService(db *gorm.DB, publisher realtime.Publisher) *NotificationService {
	return &NotificationService{db: db, publisher: publisher}
}

// Create stores a notification for in.UserID and publishes it
func (s *NotificationService) Create(ctx context.Context, in models.NotificationCreate) (*models.Notification, error) {
	if !models.IsValidNotificationType(in.Type) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, in.Type)
	}

	notification := &models.Notification{
		UserID:    in.UserID,
		Type:      in.Type,
		Title:     in.Title,
		Message:   in.Message,
		ListingID: in.ListingID,
		ClaimID:   in.ClaimID,
	}
	if err := s.insert(s.db.WithContext(ctx), notification); err != nil {
		return nil, err
	}

	s.publish(ctx, notification)
	return notification, nil
}

// insert writes n with the given handle so callers can include it in their transaction.
func (s *NotificationService) insert(tx *gorm.DB, notifications ...*models.Notification) error {
	for _, n := range notifications {
		n.Read = false
		if err := tx.Create(n).Error; err != nil {
			return fmt.Errorf("failed to create notification: %w", err)
		}
	}
	return nil
}

// publish must run after the inserting transaction committed, otherwise a
// stream could re-read before the row is visible.
func (s *NotificationService) publish(ctx context.Context, notifications ...*models.Notification) {
	for _, n := range notifications {
		if n == nil || n.ID == 0 {
			continue
		}
		metrics.RecordNotification(string(n.Type))
		if s.publisher == nil {
			continue
		}
		ev := realtime.Event{UserID: n.UserID, NotificationID: n.ID, Type: string(n.Type)}
		if err := s.publisher.Publish(ctx, ev); err != nil {
			applog.Log.WithError(err).WithFields(logrus.Fields{
				"user_id":         n.UserID,
				"notification_id": n.ID,
			}).Warn("⚠️ Failed to publish notification event")
		}
	}
}

// ListByUser returns newest-first notifications; limit <= 0 returns all
func (s *NotificationService) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	notifications := []models.Notification{}
	if err := query.Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("failed to get user notifications: %w", err)
	}
	return notifications, nil
}

func (s *NotificationService) Get(ctx context.Context, id uint) (*models.Notification, error) {
	var notification models.Notification
	if err := s.db.WithContext(ctx).First(&notification, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("notification %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &notification, nil
}

// MarkAsRead sets read=true. Marking an already read notification is a no-op.
func (s *NotificationService) MarkAsRead(ctx context.Context, id uint) (*models.Notification, error) {
	notification, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if notification.Read {
		return notification, nil
	}

	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", id).
		Update("read", true).Error; err != nil {
		return nil, fmt.Errorf("failed to mark notification as read: %w", err)
	}
	notification.Read = true

	s.publish(ctx, notification)
	return notification, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// Snapshot is the unread count plus the most recent notifications of a user.
func (s *NotificationService) Snapshot(ctx context.Context, userID uint, recent int) (*models.NotificationSnapshot, error) {
	unread, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	latest, err := s.ListByUser(ctx, userID, recent)
	if err != nil {
		return nil, err
	}
	return &models.NotificationSnapshot{UnreadCount: unread, Notifications: latest}, nil
}
