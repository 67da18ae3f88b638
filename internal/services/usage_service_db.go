package services

import (
	"time"

	"daochat_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DashboardStats aggregates a user's activity for the current month.
type DashboardStats struct {
	ConversationsTotal int64           `json:"conversations_total"`
	ConversationsToday int64           `json:"conversations_today"`
	MessagesTotal      int64           `json:"messages_total"`
	MessagesToday      int64           `json:"messages_today"`
	ActiveHoursTotal   float64         `json:"active_hours_total"`
	ActiveHoursToday   float64         `json:"active_hours_today"`
	TotalCost          decimal.Decimal `json:"total_cost"`
}

// UsageServiceDB is the usage ledger. It exclusively owns the daily message
// counters, the append-only cost log and the session records; no other
// component mutates them.
type UsageServiceDB interface {
	LogAPIUsage(userID uuid.UUID, conversationID uint, inputTokens, outputTokens int, cost decimal.Decimal) error
	MessageCountToday(userID uuid.UUID) (int, error)
	IncrementMessageCountToday(userID uuid.UUID) error
	MonthlyCost(userID uuid.UUID) (decimal.Decimal, error)
	StartSession(userID uuid.UUID) (uint, error)
	EndSession(sessionID uint) error
	ActiveHoursToday(userID uuid.UUID) (float64, error)
	DashboardStats(userID uuid.UUID) (*DashboardStats, error)
}

type DefaultUsageService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewUsageServiceDB(db *gorm.DB) UsageServiceDB {
	return &DefaultUsageService{db: db, now: time.Now}
}

// LogAPIUsage appends one usage row. Rows are never updated or deleted.
func (s *DefaultUsageService) LogAPIUsage(userID uuid.UUID, conversationID uint, inputTokens, outputTokens int, cost decimal.Decimal) error {
	entry := &models.UsageLog{
		UserID:         userID,
		ConversationID: conversationID,
		InputTokens:    inputTokens,
		OutputTokens:   outputTokens,
		EstimatedCost:  cost,
	}
	return s.db.Create(entry).Error
}

func (s *DefaultUsageService) MessageCountToday(userID uuid.UUID) (int, error) {
	var counter models.DailyMessageCount
	result := s.db.Where("user_id = ? AND date = ?", userID, s.today()).First(&counter)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, result.Error
	}
	return counter.Count, nil
}

// IncrementMessageCountToday bumps today's counter with a single upsert so
// concurrent requests from the same user never lose an increment.
func (s *DefaultUsageService) IncrementMessageCountToday(userID uuid.UUID) error {
	counter := models.DailyMessageCount{
		UserID: userID,
		Date:   s.today(),
		Count:  1,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count": gorm.Expr("daily_message_counts.count + 1"),
		}),
	}).Create(&counter).Error
}

// MonthlyCost sums the usage log since the first instant of the current
// calendar month (UTC).
func (s *DefaultUsageService) MonthlyCost(userID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	result := s.db.Model(&models.UsageLog{}).
		Select("COALESCE(SUM(estimated_cost), 0)").
		Where("user_id = ? AND created_at >= ?", userID, monthStart).
		Scan(&total)
	if result.Error != nil {
		return decimal.Zero, result.Error
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (s *DefaultUsageService) StartSession(userID uuid.UUID) (uint, error) {
	session := &models.UserSession{
		UserID:       userID,
		SessionStart: s.now().UTC(),
	}
	if err := s.db.Create(session).Error; err != nil {
		return 0, err
	}
	return session.ID, nil
}

func (s *DefaultUsageService) EndSession(sessionID uint) error {
	return s.db.Model(&models.UserSession{}).
		Where("id = ?", sessionID).
		Update("session_end", s.now().UTC()).Error
}

func (s *DefaultUsageService) ActiveHoursToday(userID uuid.UUID) (float64, error) {
	var hours float64
	result := s.db.Model(&models.UserSession{}).
		Select("COALESCE(SUM(EXTRACT(EPOCH FROM (session_end - session_start))), 0) / 3600.0").
		Where("user_id = ? AND session_start >= ? AND session_end IS NOT NULL", userID, s.today()).
		Scan(&hours)
	if result.Error != nil {
		return 0, result.Error
	}
	return hours, nil
}

func (s *DefaultUsageService) DashboardStats(userID uuid.UUID) (*DashboardStats, error) {
	stats := &DashboardStats{TotalCost: decimal.Zero}
	now := s.now().UTC()
	dayStart := s.today()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	conversations := s.db.Model(&models.Conversation{}).Where("user_id = ?", userID)
	if err := conversations.Count(&stats.ConversationsTotal).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Conversation{}).
		Where("user_id = ? AND created_at >= ?", userID, dayStart).
		Count(&stats.ConversationsToday).Error; err != nil {
		return nil, err
	}

	userMessages := func() *gorm.DB {
		return s.db.Model(&models.Message{}).
			Joins("JOIN conversations ON conversations.id = messages.conversation_id").
			Where("conversations.user_id = ? AND messages.role = ?", userID, models.RoleUser)
	}
	if err := userMessages().Count(&stats.MessagesTotal).Error; err != nil {
		return nil, err
	}
	if err := userMessages().Where("messages.created_at >= ?", dayStart).
		Count(&stats.MessagesToday).Error; err != nil {
		return nil, err
	}

	var totalCost decimal.NullDecimal
	if err := s.db.Model(&models.UsageLog{}).
		Select("COALESCE(SUM(estimated_cost), 0)").
		Where("user_id = ? AND created_at >= ?", userID, monthStart).
		Scan(&totalCost).Error; err != nil {
		return nil, err
	}
	if totalCost.Valid {
		stats.TotalCost = totalCost.Decimal
	}

	today, err := s.ActiveHoursToday(userID)
	if err != nil {
		return nil, err
	}
	stats.ActiveHoursToday = today

	var totalHours float64
	if err := s.db.Model(&models.UserSession{}).
		Select("COALESCE(SUM(EXTRACT(EPOCH FROM (session_end - session_start))), 0) / 3600.0").
		Where("user_id = ? AND session_end IS NOT NULL", userID).
		Scan(&totalHours).Error; err != nil {
		return nil, err
	}
	stats.ActiveHoursTotal = totalHours

	return stats, nil
}

func (s *DefaultUsageService) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
