package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UsageLog is append-only. Monthly cost enforcement aggregates over it, so
// rows are never updated or deleted.
type UsageLog struct {
	gorm.Model
	UserID         uuid.UUID `gorm:"type:uuid;index"`
	ConversationID uint
	InputTokens    int
	OutputTokens   int
	EstimatedCost  decimal.Decimal `gorm:"type:numeric(12,6)"`
}

// DailyMessageCount carries one row per user per UTC day. The count column
// is only ever moved by an atomic upsert.
type DailyMessageCount struct {
	ID     uint      `gorm:"primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_daily_user_date"`
	Date   time.Time `gorm:"type:date;uniqueIndex:idx_daily_user_date"`
	Count  int
}

type UserSession struct {
	gorm.Model
	UserID       uuid.UUID `gorm:"type:uuid;index"`
	SessionStart time.Time
	SessionEnd   *time.Time
}
