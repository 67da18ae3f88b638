package services

import (
	"daochat_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) CreateOrUpdateUser(authID, email string) (*models.User, error) {
	user := models.User{
		AuthID: authID,
		Email:  email,
		Active: true,
	}
	result := s.db.Where(models.User{AuthID: authID}).FirstOrCreate(&user)
	if result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}

func (s *UserService) GetUserByAuthID(authID string) (*models.User, error) {
	var user models.User
	result := s.db.Where("auth_id = ? AND active = true", authID).First(&user)
	if result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}

func (s *UserService) IsPremium(userID uuid.UUID) (bool, error) {
	var user models.User
	result := s.db.Select("is_premium").Where("id = ?", userID).First(&user)
	if result.Error != nil {
		return false, result.Error
	}
	return user.IsPremium, nil
}

func (s *UserService) SetPremium(userID uuid.UUID, premium bool) error {
	return s.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_premium", premium).Error
}
