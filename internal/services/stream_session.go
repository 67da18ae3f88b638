package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"daochat_go_backend/internal/models"
	"daochat_go_backend/internal/utils/broker"
	"daochat_go_backend/internal/utils/validators"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SessionState tracks a streaming request through its lifecycle.
type SessionState int

const (
	StateAdmitting SessionState = iota
	StatePersistingUserTurn
	StateStreaming
	StatePersistingAssistantTurn
	StateCompleted
	StateAborted
)

func (s SessionState) String() string {
	switch s {
	case StateAdmitting:
		return "admitting"
	case StatePersistingUserTurn:
		return "persisting_user_turn"
	case StateStreaming:
		return "streaming"
	case StatePersistingAssistantTurn:
		return "persisting_assistant_turn"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// StreamEvent is one server-sent event. Content events carry Chunk with Done
// false; the terminal event carries either the conversation ID plus a fresh
// rate limit snapshot, or an error.
type StreamEvent struct {
	Chunk          string                 `json:"chunk,omitempty"`
	Done           bool                   `json:"done"`
	ConversationID uint                   `json:"conversation_id,omitempty"`
	RateLimit      *RateLimitInfo         `json:"rate_limit,omitempty"`
	Error          string                 `json:"error,omitempty"`
	Quota          map[string]interface{} `json:"quota,omitempty"`
}

// QuotaGuard decides admission for quota-consuming work.
type QuotaGuard interface {
	Check(userID uuid.UUID) RateLimitInfo
	Enforce(userID uuid.UUID) (RateLimitInfo, error)
}

// ContextBuilder assembles the bounded conversation context.
type ContextBuilder interface {
	BuildContext(conversationID uint) ([]ContextMessage, error)
}

// Generator is the generation contract the controller consumes.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
	GenerateStream(ctx context.Context, req GenerationRequest) <-chan Fragment
	GenerateTitle(ctx context.Context, firstMessage string) string
}

// ChatStreamRequest describes one inbound streaming chat request.
// ConversationID zero starts a new conversation.
type ChatStreamRequest struct {
	User           *models.User
	ConversationID uint
	Message        string
	Images         []string
}

// EmitFunc forwards one event to the caller. It returns false once the
// caller can no longer be written to.
type EmitFunc func(StreamEvent) bool

// StreamSessionController owns the per-request lifecycle:
// Admitting -> PersistingUserTurn -> Streaming -> PersistingAssistantTurn ->
// Completed, with Aborted reachable from every non-terminal state.
type StreamSessionController struct {
	quota            QuotaGuard
	conversations    ConversationServiceDB
	contexts         ContextBuilder
	generator        Generator
	usage            UsageServiceDB
	events           *broker.Broker
	maxMessageLength int
}

func NewStreamSessionController(
	quota QuotaGuard,
	conversations ConversationServiceDB,
	contexts ContextBuilder,
	generator Generator,
	usage UsageServiceDB,
	events *broker.Broker,
	maxMessageLength int,
) *StreamSessionController {
	return &StreamSessionController{
		quota:            quota,
		conversations:    conversations,
		contexts:         contexts,
		generator:        generator,
		usage:            usage,
		events:           events,
		maxMessageLength: maxMessageLength,
	}
}

// Run drives one streaming chat request to a terminal state. Events are
// forwarded through emit as they are produced; the returned state is the
// terminal state reached.
func (c *StreamSessionController) Run(ctx context.Context, req ChatStreamRequest, emit EmitFunc) SessionState {
	// Validation gate: cheap local checks, before any quota read or I/O.
	clean := validators.SanitizeInput(req.Message)
	if err := validators.ValidateMessageLength(clean, c.maxMessageLength); err != nil {
		emit(StreamEvent{Error: err.Error(), Done: true})
		return StateAborted
	}

	// Admitting. Rejection has no side effects beyond the reads already done.
	info, err := c.quota.Enforce(req.User.ID)
	if err != nil {
		var quotaErr *QuotaExceededError
		if errors.As(err, &quotaErr) {
			emit(StreamEvent{Error: quotaErr.Error(), Quota: quotaErr.Payload(), Done: true})
		} else {
			log.Error().Err(err).Str("userID", req.User.ID.String()).Msg("Quota enforcement failed")
			emit(StreamEvent{Error: "Could not verify rate limits", Done: true})
		}
		return StateAborted
	}

	// Generation and bookkeeping must outlive a disconnected caller, so the
	// request context only governs delivery.
	workCtx := context.WithoutCancel(ctx)

	conversationID := req.ConversationID
	if conversationID == 0 {
		title := c.generator.GenerateTitle(workCtx, clean)
		id, err := c.conversations.CreateConversationDB(req.User.ID, title)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create conversation")
			emit(StreamEvent{Error: "Failed to create conversation", Done: true})
			return StateAborted
		}
		conversationID = id
	}

	// PersistingUserTurn.
	if err := c.conversations.AddMessageDB(conversationID, models.RoleUser, clean); err != nil {
		log.Error().Err(err).Uint("conversationID", conversationID).Msg("Failed to persist user turn")
		emit(StreamEvent{Error: "Failed to save message", Done: true})
		return StateAborted
	}

	// The user turn is durable: from here the daily counter moves exactly
	// once, whatever happens downstream.
	defer func() {
		if err := c.usage.IncrementMessageCountToday(req.User.ID); err != nil {
			log.Error().Err(err).Str("userID", req.User.ID.String()).Msg("Failed to increment daily message count")
		}
	}()

	// Streaming: assemble context, then forward fragments as they arrive
	// while keeping the running concatenation for final persistence.
	conversationContext, err := c.contexts.BuildContext(conversationID)
	if err != nil {
		log.Error().Err(err).Uint("conversationID", conversationID).Msg("Failed to build context")
		emit(StreamEvent{Error: "Failed to load conversation history", Done: true})
		return StateAborted
	}

	fragments := c.generator.GenerateStream(workCtx, GenerationRequest{
		Prompt:         promptWithImageSummary(clean, req.Images),
		Context:        conversationContext,
		Tier:           info.Tier,
		UserID:         req.User.ID,
		ConversationID: conversationID,
	})

	var buffer strings.Builder
	delivering := true
	var streamErr error

	for fragment := range fragments {
		if fragment.Done {
			streamErr = fragment.Err
			continue
		}
		buffer.WriteString(fragment.Text)
		if delivering && !emit(StreamEvent{Chunk: fragment.Text}) {
			// Caller disconnected: delivery stops, but we keep draining so
			// the partial response is persisted and its cost stays accounted.
			delivering = false
		}
	}

	// PersistingAssistantTurn: flush whatever accumulated, even partial
	// output from an aborted backend stream or a vanished caller.
	var persistErr error
	if buffer.Len() > 0 {
		persistErr = c.conversations.AddMessageDB(conversationID, models.RoleAssistant, buffer.String())
		if persistErr != nil {
			log.Error().Err(persistErr).Uint("conversationID", conversationID).Msg("Failed to persist assistant turn")
		}
	}

	if streamErr != nil {
		if delivering {
			emit(StreamEvent{Error: streamErr.Error(), Done: true})
		}
		return StateAborted
	}
	if persistErr != nil {
		if delivering {
			emit(StreamEvent{Error: "Failed to save response", Done: true})
		}
		return StateAborted
	}
	if !delivering {
		return StateAborted
	}

	// Completed: the terminal event carries a freshly recomputed snapshot,
	// not the pre-admission one.
	fresh := c.quota.Check(req.User.ID)
	emit(StreamEvent{Done: true, ConversationID: conversationID, RateLimit: &fresh})
	c.publishUsage(req.User.ID, fresh)
	return StateCompleted
}

func (c *StreamSessionController) publishUsage(userID uuid.UUID, info RateLimitInfo) {
	if c.events == nil {
		return
	}
	c.events.Publish(broker.UsageTopic(userID.String()), info)
}

func promptWithImageSummary(message string, images []string) string {
	if len(images) == 0 {
		return message
	}
	// Images are not forwarded as binary; the model only sees a count.
	return fmt.Sprintf("%s\n\n[User attached %d image(s). Describe and analyze images if requested.]", message, len(images))
}
