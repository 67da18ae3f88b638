package services

import (
	"time"

	"daochat_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationSummary is the list-view projection of a conversation.
type ConversationSummary struct {
	ID            uint       `json:"id"`
	Title         string     `json:"title"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	MessageCount  int64      `json:"message_count"`
	LastMessageAt *time.Time `json:"last_message_at"`
}

// ConversationServiceDB defines the interface for conversation persistence
type ConversationServiceDB interface {
	CreateConversationDB(userID uuid.UUID, title string) (uint, error)
	AddMessageDB(conversationID uint, role, content string) error
	GetConversationDB(conversationID uint) (*models.Conversation, error)
	MessagesDB(conversationID uint) ([]models.Message, error)
	RecentMessagesDB(conversationID uint, limit int) ([]models.Message, error)
	ListConversationsDB(userID uuid.UUID, limit int) ([]ConversationSummary, error)
	UpdateTitleDB(conversationID uint, userID uuid.UUID, title string) error
	DeleteConversationDB(conversationID uint, userID uuid.UUID) (bool, error)
}

// DefaultConversationService implements ConversationServiceDB
type DefaultConversationService struct {
	db *gorm.DB
}

func NewConversationServiceDB(db *gorm.DB) ConversationServiceDB {
	return &DefaultConversationService{db: db}
}

func (s *DefaultConversationService) CreateConversationDB(userID uuid.UUID, title string) (uint, error) {
	if title == "" {
		title = "New Chat"
	}
	conversation := &models.Conversation{
		UserID: userID,
		Title:  title,
	}
	if err := s.db.Create(conversation).Error; err != nil {
		return 0, err
	}
	return conversation.ID, nil
}

// AddMessageDB appends a message and bumps the conversation's updated_at.
func (s *DefaultConversationService) AddMessageDB(conversationID uint, role, content string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		message := &models.Message{
			ConversationID: conversationID,
			Role:           role,
			Content:        content,
		}
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Update("updated_at", time.Now().UTC()).Error
	})
}

func (s *DefaultConversationService) GetConversationDB(conversationID uint) (*models.Conversation, error) {
	var conversation models.Conversation
	result := s.db.First(&conversation, conversationID)
	if result.Error != nil {
		return nil, result.Error
	}
	return &conversation, nil
}

func (s *DefaultConversationService) MessagesDB(conversationID uint) ([]models.Message, error) {
	var messages []models.Message
	result := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at asc").
		Find(&messages)
	if result.Error != nil {
		return nil, result.Error
	}
	return messages, nil
}

// RecentMessagesDB returns at most limit messages, most recent first. Callers
// that need chronological order reverse the slice themselves.
func (s *DefaultConversationService) RecentMessagesDB(conversationID uint, limit int) ([]models.Message, error) {
	var messages []models.Message
	result := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at desc").
		Limit(limit).
		Find(&messages)
	if result.Error != nil {
		return nil, result.Error
	}
	return messages, nil
}

func (s *DefaultConversationService) ListConversationsDB(userID uuid.UUID, limit int) ([]ConversationSummary, error) {
	var summaries []ConversationSummary
	result := s.db.Model(&models.Conversation{}).
		Select(`conversations.id, conversations.title, conversations.created_at, conversations.updated_at,
			COUNT(messages.id) AS message_count, MAX(messages.created_at) AS last_message_at`).
		Joins("LEFT JOIN messages ON messages.conversation_id = conversations.id AND messages.deleted_at IS NULL").
		Where("conversations.user_id = ?", userID).
		Group("conversations.id").
		Order("conversations.updated_at DESC").
		Limit(limit).
		Scan(&summaries)
	if result.Error != nil {
		return nil, result.Error
	}
	return summaries, nil
}

func (s *DefaultConversationService) UpdateTitleDB(conversationID uint, userID uuid.UUID, title string) error {
	result := s.db.Model(&models.Conversation{}).
		Where("id = ? AND user_id = ?", conversationID, userID).
		Updates(map[string]interface{}{
			"title":      title,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteConversationDB removes a conversation and its messages. Returns false
// when the conversation does not exist or belongs to another user.
func (s *DefaultConversationService) DeleteConversationDB(conversationID uint, userID uuid.UUID) (bool, error) {
	deleted := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var conversation models.Conversation
		result := tx.Where("id = ? AND user_id = ?", conversationID, userID).First(&conversation)
		if result.Error != nil {
			if result.Error == gorm.ErrRecordNotFound {
				return nil
			}
			return result.Error
		}
		if err := tx.Where("conversation_id = ?", conversationID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&conversation).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}
