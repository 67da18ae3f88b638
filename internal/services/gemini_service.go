package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
)

// Gemini Flash pricing, dollars per token.
var (
	geminiInputCostPerToken  = decimal.NewFromFloat(0.000075).Div(decimal.NewFromInt(1000))
	geminiOutputCostPerToken = decimal.NewFromFloat(0.0003).Div(decimal.NewFromInt(1000))
)

// Model variants by tier. Elite and pro get the higher-capability models.
const (
	modelFree  = "gemini-2.0-flash"
	modelPro   = "gemini-2.5-flash"
	modelElite = "gemini-2.5-flash-lite"
)

// tokenEstimateFactor approximates tokens from whitespace-separated words
// when the backend omits usage metadata. It is a documented rough estimate,
// not a tokenizer.
const tokenEstimateFactor = 1.3

// GenerationResult is the outcome of one buffered generation call.
type GenerationResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	Cost         decimal.Decimal
	Model        string
}

// Fragment is one incremental piece of a streamed response. Exactly one
// terminal fragment (Done true) is sent per stream; Err is set on it when the
// backend failed after zero or more content fragments.
type Fragment struct {
	Text string
	Err  error
	Done bool
}

// GenerationRequest carries everything the orchestrator needs for one call.
// UserID/ConversationID are optional; when both are set, exactly one usage
// log entry is written after the call.
type GenerationRequest struct {
	Prompt         string
	Context        []ContextMessage
	Tier           Tier
	UserID         uuid.UUID
	ConversationID uint
}

// ResponseStream abstracts the genai streaming iterator.
type ResponseStream interface {
	Next() (*genai.GenerateContentResponse, error)
}

// GenerationBackend abstracts the Gemini client so the orchestrator can be
// exercised without network calls.
type GenerationBackend interface {
	Generate(ctx context.Context, model string, history []*genai.Content, prompt string) (*genai.GenerateContentResponse, error)
	GenerateStream(ctx context.Context, model string, history []*genai.Content, prompt string) ResponseStream
}

type googleGenerationBackend struct {
	client *genai.Client
}

func NewGoogleGenerationBackend(client *genai.Client) GenerationBackend {
	return &googleGenerationBackend{client: client}
}

func (b *googleGenerationBackend) configuredModel(name string) *genai.GenerativeModel {
	model := b.client.GenerativeModel(name)
	model.SetTemperature(0.7)
	model.SetTopP(0.95)
	model.SetTopK(40)
	model.SetMaxOutputTokens(8192)
	return model
}

func (b *googleGenerationBackend) Generate(ctx context.Context, modelName string, history []*genai.Content, prompt string) (*genai.GenerateContentResponse, error) {
	model := b.configuredModel(modelName)
	if len(history) > 0 {
		chat := model.StartChat()
		chat.History = history
		return chat.SendMessage(ctx, genai.Text(prompt))
	}
	return model.GenerateContent(ctx, genai.Text(prompt))
}

func (b *googleGenerationBackend) GenerateStream(ctx context.Context, modelName string, history []*genai.Content, prompt string) ResponseStream {
	model := b.configuredModel(modelName)
	if len(history) > 0 {
		chat := model.StartChat()
		chat.History = history
		return chat.SendMessageStream(ctx, genai.Text(prompt))
	}
	return model.GenerateContentStream(ctx, genai.Text(prompt))
}

// GeminiService orchestrates generation calls: model selection by tier,
// buffered and streamed contracts, and token/cost accounting against the
// usage ledger.
type GeminiService struct {
	backend GenerationBackend
	usage   UsageServiceDB
}

func NewGeminiService(backend GenerationBackend, usage UsageServiceDB) *GeminiService {
	return &GeminiService{
		backend: backend,
		usage:   usage,
	}
}

func modelForTier(tier Tier) string {
	switch tier {
	case TierFree:
		return modelFree
	case TierPro:
		return modelPro
	case TierElite:
		return modelElite
	default:
		return modelFree
	}
}

// Generate performs a single blocking generation call.
func (s *GeminiService) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	modelName := modelForTier(req.Tier)
	history := buildHistory(req.Context)

	response, err := s.backend.Generate(ctx, modelName, history, req.Prompt)
	if err != nil {
		return nil, fmt.Errorf("AI generation failed: %w", err)
	}

	text := responseText(response)
	inputTokens, outputTokens := tokenCounts(response.UsageMetadata, req.Prompt, text)
	cost := computeCost(inputTokens, outputTokens)

	s.recordUsage(req, inputTokens, outputTokens, cost)

	return &GenerationResult{
		Text:         text,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		Cost:         cost,
		Model:        modelName,
	}, nil
}

// GenerateStream yields text fragments as the backend produces them, then a
// single terminal fragment. A backend failure mid-stream becomes a terminal
// error fragment; fragments already delivered stand, and whatever was
// produced is still accounted for.
func (s *GeminiService) GenerateStream(ctx context.Context, req GenerationRequest) <-chan Fragment {
	fragments := make(chan Fragment)

	go func() {
		defer close(fragments)

		modelName := modelForTier(req.Tier)
		history := buildHistory(req.Context)
		stream := s.backend.GenerateStream(ctx, modelName, history, req.Prompt)

		var full strings.Builder
		var usage *genai.UsageMetadata

		for {
			response, err := stream.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				s.accountStream(req, full.String(), usage)
				fragments <- Fragment{Err: fmt.Errorf("AI generation failed: %w", err), Done: true}
				return
			}
			if response.UsageMetadata != nil {
				usage = response.UsageMetadata
			}
			text := responseText(response)
			if text == "" {
				continue
			}
			full.WriteString(text)
			fragments <- Fragment{Text: text}
		}

		s.accountStream(req, full.String(), usage)
		fragments <- Fragment{Done: true}
	}()

	return fragments
}

// GenerateTitle asks the model for a short conversation title, falling back
// to a truncation of the first message when generation fails.
func (s *GeminiService) GenerateTitle(ctx context.Context, firstMessage string) string {
	snippet := firstMessage
	if len(snippet) > 100 {
		snippet = snippet[:100]
	}
	prompt := fmt.Sprintf("Generate a short, concise title (max 6 words) for a conversation that starts with:\n%q\n\nReturn ONLY the title, nothing else.", snippet)

	response, err := s.backend.Generate(ctx, modelPro, nil, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("Title generation failed, falling back to truncation")
		return truncateTitle(firstMessage)
	}

	title := strings.Trim(strings.TrimSpace(responseText(response)), `"'`)
	if title == "" {
		return truncateTitle(firstMessage)
	}
	if len(title) > 50 {
		title = title[:50]
	}
	return title
}

func truncateTitle(message string) string {
	if len(message) > 40 {
		return message[:40] + "..."
	}
	return message
}

// accountStream runs the post-stream accounting exactly once: true usage
// metadata when the backend supplied it, else the word-count estimate.
func (s *GeminiService) accountStream(req GenerationRequest, fullResponse string, usage *genai.UsageMetadata) {
	inputTokens, outputTokens := tokenCounts(usage, req.Prompt, fullResponse)
	cost := computeCost(inputTokens, outputTokens)
	s.recordUsage(req, inputTokens, outputTokens, cost)
}

// recordUsage writes the usage log entry. Logging failure never fails the
// generation call; accounting is best-effort relative to the user-visible
// response.
func (s *GeminiService) recordUsage(req GenerationRequest, inputTokens, outputTokens int, cost decimal.Decimal) {
	if req.UserID == uuid.Nil || req.ConversationID == 0 {
		return
	}
	if err := s.usage.LogAPIUsage(req.UserID, req.ConversationID, inputTokens, outputTokens, cost); err != nil {
		log.Error().Err(err).
			Str("userID", req.UserID.String()).
			Uint("conversationID", req.ConversationID).
			Msg("Failed to log API usage")
	}
}

func tokenCounts(usage *genai.UsageMetadata, prompt, response string) (int, int) {
	if usage != nil {
		return int(usage.PromptTokenCount), int(usage.CandidatesTokenCount)
	}
	return estimateTokens(prompt), estimateTokens(response)
}

func estimateTokens(text string) int {
	return int(float64(len(strings.Fields(text))) * tokenEstimateFactor)
}

func computeCost(inputTokens, outputTokens int) decimal.Decimal {
	input := geminiInputCostPerToken.Mul(decimal.NewFromInt(int64(inputTokens)))
	output := geminiOutputCostPerToken.Mul(decimal.NewFromInt(int64(outputTokens)))
	return input.Add(output)
}

// buildHistory converts assembled context into genai chat history. The final
// entry is the caller's current turn and travels as the live prompt, so it is
// dropped here.
func buildHistory(context []ContextMessage) []*genai.Content {
	if len(context) == 0 {
		return nil
	}
	history := make([]*genai.Content, 0, len(context)-1)
	for _, message := range context[:len(context)-1] {
		content := &genai.Content{
			Role:  historyRole(message.Role),
			Parts: []genai.Part{genai.Text(message.Content)},
		}
		history = append(history, content)
	}
	return history
}

func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 {
		return ""
	}
	candidate := response.Candidates[0]
	if candidate.Content == nil {
		return ""
	}
	var builder strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			builder.WriteString(string(text))
		}
	}
	return builder.String()
}
