package services

import (
	"time"

	"daochat_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubscriptionServiceDB defines the interface for subscription persistence
type SubscriptionServiceDB interface {
	ActivePlanDB(userID uuid.UUID) (string, error)
	LatestSubscriptionDB(userID uuid.UUID) (*models.Subscription, error)
	BySignatureDB(txSignature string) (*models.Subscription, error)
	UpsertSubscriptionDB(userID uuid.UUID, plan, txSignature string, expiredAt time.Time) error
	CancelSubscriptionDB(userID uuid.UUID) error
}

type DefaultSubscriptionService struct {
	db *gorm.DB
}

func NewSubscriptionServiceDB(db *gorm.DB) SubscriptionServiceDB {
	return &DefaultSubscriptionService{db: db}
}

// ActivePlanDB returns the raw plan name of the user's active subscription,
// or "" when none exists. The caller normalizes the name.
func (s *DefaultSubscriptionService) ActivePlanDB(userID uuid.UUID) (string, error) {
	var subscription models.Subscription
	result := s.db.Where("user_id = ? AND status = ?", userID, models.SubscriptionActive).
		Order("created_at desc").
		First(&subscription)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", result.Error
	}
	return subscription.Plan, nil
}

func (s *DefaultSubscriptionService) LatestSubscriptionDB(userID uuid.UUID) (*models.Subscription, error) {
	var subscription models.Subscription
	result := s.db.Where("user_id = ?", userID).
		Order("created_at desc").
		First(&subscription)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &subscription, nil
}

func (s *DefaultSubscriptionService) BySignatureDB(txSignature string) (*models.Subscription, error) {
	var subscription models.Subscription
	result := s.db.Where("tx_signature = ?", txSignature).First(&subscription)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &subscription, nil
}

func (s *DefaultSubscriptionService) UpsertSubscriptionDB(userID uuid.UUID, plan, txSignature string, expiredAt time.Time) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Subscription
		result := tx.Where("user_id = ?", userID).First(&existing)
		if result.Error != nil {
			if result.Error != gorm.ErrRecordNotFound {
				return result.Error
			}
			subscription := &models.Subscription{
				UserID:      userID,
				Plan:        plan,
				Status:      models.SubscriptionActive,
				TxSignature: txSignature,
				ExpiredAt:   &expiredAt,
			}
			return tx.Create(subscription).Error
		}
		return tx.Model(&existing).Updates(map[string]interface{}{
			"plan":         plan,
			"status":       models.SubscriptionActive,
			"tx_signature": txSignature,
			"expired_at":   expiredAt,
		}).Error
	})
}

func (s *DefaultSubscriptionService) CancelSubscriptionDB(userID uuid.UUID) error {
	return s.db.Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Update("status", models.SubscriptionCancelled).Error
}
