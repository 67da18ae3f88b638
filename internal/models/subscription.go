package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
)

type Subscription struct {
	gorm.Model
	UserID      uuid.UUID `gorm:"type:uuid;index"`
	Plan        string
	Status      string
	TxSignature string `gorm:"uniqueIndex"`
	ExpiredAt   *time.Time
}
