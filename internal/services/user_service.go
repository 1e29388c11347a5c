package services

import (
	"context"
	"errors"
	"fmt"

	"english_lab_go_backend/internal/models"

	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// CreateOrUpdateUser finds the user for an identity-provider subject, creating
// it on first sight and refreshing email and name afterwards.
func (s *UserService) CreateOrUpdateUser(ctx context.Context, authID, email, name string) (*models.User, error) {
	if authID == "" {
		return nil, errors.New("missing subject")
	}

	user := models.User{
		AuthID: authID,
		Email:  email,
		Name:   name,
	}
	result := s.db.WithContext(ctx).
		Where(models.User{AuthID: authID}).
		Assign(models.User{Email: email, Name: name}).
		FirstOrCreate(&user)
	if result.Error != nil {
		return nil, fmt.Errorf("upsert user: %w", result.Error)
	}
	return &user, nil
}

func (s *UserService) GetUserByAuthID(ctx context.Context, authID string) (*models.User, error) {
	var user models.User
	result := s.db.WithContext(ctx).Where("auth_id = ?", authID).First(&user)
	if result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}
