package services

import (
	"context"
	"time"

	"daochat_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockUsageService struct {
	mock.Mock
}

func (m *MockUsageService) LogAPIUsage(userID uuid.UUID, conversationID uint, inputTokens, outputTokens int, cost decimal.Decimal) error {
	args := m.Called(userID, conversationID, inputTokens, outputTokens, cost)
	return args.Error(0)
}

func (m *MockUsageService) MessageCountToday(userID uuid.UUID) (int, error) {
	args := m.Called(userID)
	return args.Int(0), args.Error(1)
}

func (m *MockUsageService) IncrementMessageCountToday(userID uuid.UUID) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockUsageService) MonthlyCost(userID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockUsageService) StartSession(userID uuid.UUID) (uint, error) {
	args := m.Called(userID)
	return args.Get(0).(uint), args.Error(1)
}

func (m *MockUsageService) EndSession(sessionID uint) error {
	args := m.Called(sessionID)
	return args.Error(0)
}

func (m *MockUsageService) ActiveHoursToday(userID uuid.UUID) (float64, error) {
	args := m.Called(userID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockUsageService) DashboardStats(userID uuid.UUID) (*DashboardStats, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DashboardStats), args.Error(1)
}

type MockConversationService struct {
	mock.Mock
}

func (m *MockConversationService) CreateConversationDB(userID uuid.UUID, title string) (uint, error) {
	args := m.Called(userID, title)
	return args.Get(0).(uint), args.Error(1)
}

func (m *MockConversationService) AddMessageDB(conversationID uint, role, content string) error {
	args := m.Called(conversationID, role, content)
	return args.Error(0)
}

func (m *MockConversationService) GetConversationDB(conversationID uint) (*models.Conversation, error) {
	args := m.Called(conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockConversationService) MessagesDB(conversationID uint) ([]models.Message, error) {
	args := m.Called(conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockConversationService) RecentMessagesDB(conversationID uint, limit int) ([]models.Message, error) {
	args := m.Called(conversationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockConversationService) ListConversationsDB(userID uuid.UUID, limit int) ([]ConversationSummary, error) {
	args := m.Called(userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ConversationSummary), args.Error(1)
}

func (m *MockConversationService) UpdateTitleDB(conversationID uint, userID uuid.UUID, title string) error {
	args := m.Called(conversationID, userID, title)
	return args.Error(0)
}

func (m *MockConversationService) DeleteConversationDB(conversationID uint, userID uuid.UUID) (bool, error) {
	args := m.Called(conversationID, userID)
	return args.Bool(0), args.Error(1)
}

type MockSubscriptionService struct {
	mock.Mock
}

func (m *MockSubscriptionService) ActivePlanDB(userID uuid.UUID) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

func (m *MockSubscriptionService) LatestSubscriptionDB(userID uuid.UUID) (*models.Subscription, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionService) BySignatureDB(txSignature string) (*models.Subscription, error) {
	args := m.Called(txSignature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionService) UpsertSubscriptionDB(userID uuid.UUID, plan, txSignature string, expiredAt time.Time) error {
	args := m.Called(userID, plan, txSignature, expiredAt)
	return args.Error(0)
}

func (m *MockSubscriptionService) CancelSubscriptionDB(userID uuid.UUID) error {
	args := m.Called(userID)
	return args.Error(0)
}

type MockPremiumFlagStore struct {
	mock.Mock
}

func (m *MockPremiumFlagStore) IsPremium(userID uuid.UUID) (bool, error) {
	args := m.Called(userID)
	return args.Bool(0), args.Error(1)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*GenerationResult), args.Error(1)
}

func (m *MockGenerator) GenerateStream(ctx context.Context, req GenerationRequest) <-chan Fragment {
	args := m.Called(ctx, req)
	return args.Get(0).(<-chan Fragment)
}

func (m *MockGenerator) GenerateTitle(ctx context.Context, firstMessage string) string {
	args := m.Called(ctx, firstMessage)
	return args.String(0)
}

type MockContextBuilder struct {
	mock.Mock
}

func (m *MockContextBuilder) BuildContext(conversationID uint) ([]ContextMessage, error) {
	args := m.Called(conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ContextMessage), args.Error(1)
}

type MockQuotaGuard struct {
	mock.Mock
}

func (m *MockQuotaGuard) Check(userID uuid.UUID) RateLimitInfo {
	args := m.Called(userID)
	return args.Get(0).(RateLimitInfo)
}

func (m *MockQuotaGuard) Enforce(userID uuid.UUID) (RateLimitInfo, error) {
	args := m.Called(userID)
	return args.Get(0).(RateLimitInfo), args.Error(1)
}

// fragmentChannel wraps a prepared fragment sequence for MockGenerator.
func fragmentChannel(fragments ...Fragment) <-chan Fragment {
	ch := make(chan Fragment, len(fragments))
	for _, fragment := range fragments {
		ch <- fragment
	}
	close(ch)
	return ch
}
