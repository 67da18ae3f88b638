package services

import (
	"context"
	"errors"
	"fmt"

	appErrors "daochat_go_backend/internal/errors"
	"daochat_go_backend/internal/models"
	"daochat_go_backend/internal/utils/validators"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ReplyMetadata summarizes the generation behind a buffered reply.
type ReplyMetadata struct {
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost"`
}

// ChatReply is the buffered (non-streaming) chat result.
type ChatReply struct {
	ConversationID uint          `json:"conversation_id"`
	Reply          string        `json:"reply"`
	Metadata       ReplyMetadata `json:"metadata"`
	RateLimit      RateLimitInfo `json:"rate_limit"`
}

// ChatService handles the buffered chat flow. The streaming flow lives in
// StreamSessionController; both share the same admission, persistence and
// accounting rules.
type ChatService struct {
	quota            QuotaGuard
	conversations    ConversationServiceDB
	contexts         ContextBuilder
	generator        Generator
	usage            UsageServiceDB
	maxMessageLength int
}

func NewChatService(
	quota QuotaGuard,
	conversations ConversationServiceDB,
	contexts ContextBuilder,
	generator Generator,
	usage UsageServiceDB,
	maxMessageLength int,
) *ChatService {
	return &ChatService{
		quota:            quota,
		conversations:    conversations,
		contexts:         contexts,
		generator:        generator,
		usage:            usage,
		maxMessageLength: maxMessageLength,
	}
}

// StartConversation creates a conversation titled from the first message and
// answers it.
func (s *ChatService) StartConversation(ctx context.Context, user *models.User, message string, images []string) (*ChatReply, error) {
	clean := validators.SanitizeInput(message)
	if err := validators.ValidateMessageLength(clean, s.maxMessageLength); err != nil {
		return nil, err
	}

	info, err := s.quota.Enforce(user.ID)
	if err != nil {
		return nil, err
	}

	title := s.generator.GenerateTitle(ctx, clean)
	conversationID, err := s.conversations.CreateConversationDB(user.ID, title)
	if err != nil {
		return nil, appErrors.LogAndReturn500(fmt.Errorf("failed to create conversation: %w", err))
	}

	return s.completeTurn(ctx, user, conversationID, clean, images, info)
}

// SendMessage answers a message on an existing conversation the user owns.
func (s *ChatService) SendMessage(ctx context.Context, user *models.User, conversationID uint, message string, images []string) (*ChatReply, error) {
	clean := validators.SanitizeInput(message)
	if err := validators.ValidateMessageLength(clean, s.maxMessageLength); err != nil {
		return nil, err
	}

	if err := s.AuthorizeConversation(user, conversationID); err != nil {
		return nil, err
	}

	info, err := s.quota.Enforce(user.ID)
	if err != nil {
		return nil, err
	}

	return s.completeTurn(ctx, user, conversationID, clean, images, info)
}

// AuthorizeConversation verifies the conversation exists and belongs to the
// user. Ownership mismatches surface as not found so conversation IDs leak
// nothing across users.
func (s *ChatService) AuthorizeConversation(user *models.User, conversationID uint) error {
	conversation, err := s.conversations.GetConversationDB(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErrors.New404Error("Conversation not found")
		}
		return appErrors.LogAndReturn500(fmt.Errorf("failed to load conversation: %w", err))
	}
	if conversation.UserID != user.ID {
		return appErrors.New404Error("Conversation not found")
	}
	return nil
}

func (s *ChatService) completeTurn(ctx context.Context, user *models.User, conversationID uint, message string, images []string, info RateLimitInfo) (*ChatReply, error) {
	if err := s.conversations.AddMessageDB(conversationID, models.RoleUser, message); err != nil {
		return nil, appErrors.LogAndReturn500(fmt.Errorf("failed to save message: %w", err))
	}

	defer func() {
		if err := s.usage.IncrementMessageCountToday(user.ID); err != nil {
			log.Error().Err(err).Str("userID", user.ID.String()).Msg("Failed to increment daily message count")
		}
	}()

	conversationContext, err := s.contexts.BuildContext(conversationID)
	if err != nil {
		return nil, appErrors.LogAndReturn500(fmt.Errorf("failed to load conversation history: %w", err))
	}

	result, err := s.generator.Generate(ctx, GenerationRequest{
		Prompt:         promptWithImageSummary(message, images),
		Context:        conversationContext,
		Tier:           info.Tier,
		UserID:         user.ID,
		ConversationID: conversationID,
	})
	if err != nil {
		return nil, appErrors.LogAndReturn500(fmt.Errorf("ai generation failed: %w", err))
	}

	if err := s.conversations.AddMessageDB(conversationID, models.RoleAssistant, result.Text); err != nil {
		return nil, appErrors.LogAndReturn500(fmt.Errorf("failed to save response: %w", err))
	}

	cost, _ := result.Cost.Float64()
	return &ChatReply{
		ConversationID: conversationID,
		Reply:          result.Text,
		Metadata: ReplyMetadata{
			Model:        result.Model,
			InputTokens:  result.InputTokens,
			OutputTokens: result.OutputTokens,
			TotalTokens:  result.InputTokens + result.OutputTokens,
			Cost:         cost,
		},
		RateLimit: s.quota.Check(user.ID),
	}, nil
}
