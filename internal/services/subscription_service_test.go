package services

import (
	"context"
	"strings"
	"testing"
	"time"

	appErrors "daochat_go_backend/internal/errors"
	"daochat_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const validSignature = "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"

type MockPremiumFlagWriter struct {
	mock.Mock
}

func (m *MockPremiumFlagWriter) SetPremium(userID uuid.UUID, premium bool) error {
	args := m.Called(userID, premium)
	return args.Error(0)
}

type stubVerifier struct {
	result VerificationResult
}

func (v *stubVerifier) VerifyTransaction(ctx context.Context, txSignature string, expectedAmountSOL decimal.Decimal, recipientWallet string) VerificationResult {
	return v.result
}

func TestPlanStates(t *testing.T) {
	userID := uuid.New()

	t.Run("no subscription", func(t *testing.T) {
		subscriptions := new(MockSubscriptionService)
		subscriptions.On("LatestSubscriptionDB", userID).Return(nil, nil)

		service := NewSubscriptionService(subscriptions, new(MockPremiumFlagWriter), &stubVerifier{}, "treasury")
		plan, err := service.Plan(userID)
		require.NoError(t, err)
		assert.Equal(t, "free", plan.Plan)
		assert.False(t, plan.IsPremium)
	})

	t.Run("active legacy typo plan", func(t *testing.T) {
		expiry := time.Now().UTC().Add(10 * 24 * time.Hour)
		subscriptions := new(MockSubscriptionService)
		subscriptions.On("LatestSubscriptionDB", userID).Return(&models.Subscription{
			UserID:    userID,
			Plan:      "premuim",
			Status:    models.SubscriptionActive,
			ExpiredAt: &expiry,
		}, nil)

		service := NewSubscriptionService(subscriptions, new(MockPremiumFlagWriter), &stubVerifier{}, "treasury")
		plan, err := service.Plan(userID)
		require.NoError(t, err)
		assert.Equal(t, "elite", plan.Plan)
		assert.True(t, plan.IsPremium)
	})

	t.Run("expired subscription reports free", func(t *testing.T) {
		expiry := time.Now().UTC().Add(-24 * time.Hour)
		subscriptions := new(MockSubscriptionService)
		subscriptions.On("LatestSubscriptionDB", userID).Return(&models.Subscription{
			UserID:    userID,
			Plan:      "pro",
			Status:    models.SubscriptionActive,
			ExpiredAt: &expiry,
		}, nil)

		service := NewSubscriptionService(subscriptions, new(MockPremiumFlagWriter), &stubVerifier{}, "treasury")
		plan, err := service.Plan(userID)
		require.NoError(t, err)
		assert.Equal(t, "free", plan.Plan)
		assert.False(t, plan.IsPremium)
	})

	t.Run("cancelled subscription reports free", func(t *testing.T) {
		subscriptions := new(MockSubscriptionService)
		subscriptions.On("LatestSubscriptionDB", userID).Return(&models.Subscription{
			UserID: userID,
			Plan:   "elite",
			Status: models.SubscriptionCancelled,
		}, nil)

		service := NewSubscriptionService(subscriptions, new(MockPremiumFlagWriter), &stubVerifier{}, "treasury")
		plan, err := service.Plan(userID)
		require.NoError(t, err)
		assert.Equal(t, "free", plan.Plan)
	})
}

func TestUpgradeHappyPath(t *testing.T) {
	userID := uuid.New()

	subscriptions := new(MockSubscriptionService)
	subscriptions.On("BySignatureDB", validSignature).Return(nil, nil)
	subscriptions.On("UpsertSubscriptionDB", userID, "elite", validSignature, mock.Anything).Return(nil)

	users := new(MockPremiumFlagWriter)
	users.On("SetPremium", userID, true).Return(nil)

	verifier := &stubVerifier{result: VerificationResult{Valid: true, Status: "finalized"}}
	service := NewSubscriptionService(subscriptions, users, verifier, "treasury")

	result, err := service.Upgrade(context.Background(), userID, "premuim", validSignature)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "elite", result.Plan)
	assert.True(t, result.IsPremium)
	assert.WithinDuration(t, time.Now().UTC().Add(30*24*time.Hour), result.Expiry, time.Minute)
	subscriptions.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestUpgradeRejectsInvalidPlan(t *testing.T) {
	service := NewSubscriptionService(new(MockSubscriptionService), new(MockPremiumFlagWriter), &stubVerifier{}, "treasury")

	_, err := service.Upgrade(context.Background(), uuid.New(), "enterprise", validSignature)
	var customErr *appErrors.CustomError
	require.ErrorAs(t, err, &customErr)
	assert.Equal(t, 400, customErr.StatusCode)
}

func TestUpgradeRejectsReusedSignature(t *testing.T) {
	userID := uuid.New()

	subscriptions := new(MockSubscriptionService)
	subscriptions.On("BySignatureDB", validSignature).Return(&models.Subscription{
		UserID:      uuid.New(), // someone else already spent it
		TxSignature: validSignature,
	}, nil)

	service := NewSubscriptionService(subscriptions, new(MockPremiumFlagWriter), &stubVerifier{}, "treasury")

	_, err := service.Upgrade(context.Background(), userID, "pro", validSignature)
	var customErr *appErrors.CustomError
	require.ErrorAs(t, err, &customErr)
	assert.Contains(t, customErr.Message, "already been used")
	subscriptions.AssertNotCalled(t, "UpsertSubscriptionDB", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpgradeRejectsFailedVerification(t *testing.T) {
	userID := uuid.New()

	subscriptions := new(MockSubscriptionService)
	subscriptions.On("BySignatureDB", validSignature).Return(nil, nil)

	verifier := &stubVerifier{result: VerificationResult{
		Valid: false,
		Error: "Transaction not yet confirmed",
		Code:  VerifyCodePending,
	}}
	service := NewSubscriptionService(subscriptions, new(MockPremiumFlagWriter), verifier, "treasury")

	_, err := service.Upgrade(context.Background(), userID, "pro", validSignature)
	var customErr *appErrors.CustomError
	require.ErrorAs(t, err, &customErr)
	assert.Contains(t, customErr.Message, "not yet confirmed")
	subscriptions.AssertNotCalled(t, "UpsertSubscriptionDB", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelClearsPremium(t *testing.T) {
	userID := uuid.New()

	subscriptions := new(MockSubscriptionService)
	subscriptions.On("CancelSubscriptionDB", userID).Return(nil)

	users := new(MockPremiumFlagWriter)
	users.On("SetPremium", userID, false).Return(nil)

	service := NewSubscriptionService(subscriptions, users, &stubVerifier{}, "treasury")
	plan, err := service.Cancel(userID)
	require.NoError(t, err)

	assert.Equal(t, "free", plan.Plan)
	assert.False(t, plan.IsPremium)
	users.AssertExpectations(t)
}

func TestValidateSignatureFormat(t *testing.T) {
	assert.True(t, ValidateSignatureFormat(validSignature))
	assert.False(t, ValidateSignatureFormat(""))
	assert.False(t, ValidateSignatureFormat("too-short"))
	assert.False(t, ValidateSignatureFormat(strings.Repeat("a", 101)), "over length cap")
	// 0, O, I and l are outside the base58 alphabet
	assert.False(t, ValidateSignatureFormat(strings.Repeat("O", 90)))
	assert.False(t, ValidateSignatureFormat(strings.Repeat("l", 90)))
	assert.True(t, ValidateSignatureFormat(strings.Repeat("a", 90)))
}
