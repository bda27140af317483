package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	applog "food-share-server/logger"
	"food-share-server/models"
	"food-share-server/utils"
)

type UserService struct {
	db     *gorm.DB
	tokens *TokenService
}

func NewUserService(db *gorm.DB, tokens *TokenService) *UserService {
	return &UserService{db: db, tokens: tokens}
}

// Register creates a user and opens a session for it
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*Session, error) {
	if !models.IsValidRole(req.Role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, req.Role)
	}
	if !utils.IsLocationValid(req.Location.Lat, req.Location.Lng) {
		return nil, ErrInvalidLocation
	}

	email := utils.NormalizeEmail(req.Email)

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         req.Role,
		Location:     req.Location,
		Phone:        req.Phone,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	applog.Log.WithField("user_id", user.ID).Infof("✅ User registered as %s", user.Role)
	return s.tokens.Issue(user)
}

// Authenticate checks credentials and opens a session
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", utils.NormalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user.PasswordHash == "" || !utils.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.tokens.Issue(&user)
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
