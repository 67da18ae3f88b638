package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Conversation struct {
	gorm.Model
	UserID   uuid.UUID `gorm:"type:uuid;index"`
	Title    string
	Messages []Message `gorm:"foreignKey:ConversationID"`
}

type Message struct {
	gorm.Model
	ConversationID uint   `gorm:"index"`
	Role           string `gorm:"index"`
	Content        string
}
