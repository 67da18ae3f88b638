package services

import (
	"fmt"

	"daochat_go_backend/internal/models"
)

const (
	RoleSystem = "system"

	// systemPreamble is synthesized fresh for every request and is never
	// stored with the conversation.
	systemPreamble = `You are a helpful, friendly AI assistant. You provide clear, accurate, and concise responses.

Guidelines:
- Be conversational and engaging
- If you're unsure, say so
- Format responses with markdown when helpful
- Keep responses focused and relevant
- Ask clarifying questions when needed`
)

// ContextMessage is one turn handed to the generation backend.
type ContextMessage struct {
	Role    string
	Content string
}

// ContextService builds the bounded conversation context for generation
// calls: one leading system entry plus at most maxMessages recent turns in
// chronological order.
type ContextService struct {
	conversations ConversationServiceDB
	maxMessages   int
}

func NewContextService(conversations ConversationServiceDB, maxMessages int) *ContextService {
	return &ContextService{
		conversations: conversations,
		maxMessages:   maxMessages,
	}
}

// BuildContext reads the newest maxMessages turns (so the tail of a long
// conversation is kept, not an arbitrary prefix), reverses them back to
// chronological order and prepends the system preamble.
func (s *ContextService) BuildContext(conversationID uint) ([]ContextMessage, error) {
	recent, err := s.conversations.RecentMessagesDB(conversationID, s.maxMessages)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	context := make([]ContextMessage, 0, len(recent)+1)
	context = append(context, ContextMessage{Role: RoleSystem, Content: systemPreamble})
	for i := len(recent) - 1; i >= 0; i-- {
		context = append(context, ContextMessage{
			Role:    recent[i].Role,
			Content: recent[i].Content,
		})
	}
	return context, nil
}

// historyRole maps stored roles onto the two roles the Gemini API accepts.
func historyRole(role string) string {
	if role == models.RoleUser || role == RoleSystem {
		return "user"
	}
	return "model"
}
