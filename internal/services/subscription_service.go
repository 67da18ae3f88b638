package services

import (
	"context"
	"fmt"
	"time"

	appErrors "daochat_go_backend/internal/errors"
	"daochat_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const subscriptionDuration = 30 * 24 * time.Hour

// planPrices maps purchasable plan names to their SOL price. The legacy
// misspelling is still accepted on the wire.
var planPrices = map[string]decimal.Decimal{
	"pro":     decimal.RequireFromString("0.05"),
	"premuim": decimal.RequireFromString("0.25"),
	"elite":   decimal.RequireFromString("0.25"),
}

// PlanInfo is the subscription status returned to clients.
type PlanInfo struct {
	Plan      string     `json:"plan"`
	ExpiredAt *time.Time `json:"expired_at"`
	IsPremium bool       `json:"is_premium"`
}

// UpgradeResult confirms a completed upgrade.
type UpgradeResult struct {
	Success   bool      `json:"success"`
	Plan      string    `json:"plan"`
	Expiry    time.Time `json:"expiry"`
	Message   string    `json:"message"`
	IsPremium bool      `json:"is_premium"`
}

// PremiumFlagWriter flips the legacy is_premium flag kept on user rows.
type PremiumFlagWriter interface {
	SetPremium(userID uuid.UUID, premium bool) error
}

// SubscriptionService handles plan lookup, paid upgrades and cancellation.
type SubscriptionService struct {
	subscriptions SubscriptionServiceDB
	users         PremiumFlagWriter
	verifier      PaymentVerifier
	treasury      string
}

func NewSubscriptionService(subscriptions SubscriptionServiceDB, users PremiumFlagWriter, verifier PaymentVerifier, treasuryWallet string) *SubscriptionService {
	if treasuryWallet == "" {
		log.Warn().Msg("Treasury wallet not configured, upgrades will fail verification")
	}
	return &SubscriptionService{
		subscriptions: subscriptions,
		users:         users,
		verifier:      verifier,
		treasury:      treasuryWallet,
	}
}

// Plan returns the user's current plan. Expired or cancelled subscriptions
// report as free.
func (s *SubscriptionService) Plan(userID uuid.UUID) (*PlanInfo, error) {
	subscription, err := s.subscriptions.LatestSubscriptionDB(userID)
	if err != nil {
		return nil, appErrors.LogAndReturn500(fmt.Errorf("failed to load subscription: %w", err))
	}
	if subscription == nil {
		return &PlanInfo{Plan: string(TierFree)}, nil
	}

	tier := NormalizeTier(subscription.Plan)
	active := subscription.Status == models.SubscriptionActive && tier != TierFree
	if active && subscription.ExpiredAt != nil && subscription.ExpiredAt.Before(time.Now().UTC()) {
		active = false
	}
	if !active {
		return &PlanInfo{Plan: string(TierFree), ExpiredAt: subscription.ExpiredAt}, nil
	}
	return &PlanInfo{Plan: string(tier), ExpiredAt: subscription.ExpiredAt, IsPremium: true}, nil
}

// Upgrade verifies the payment on chain, then records the subscription and
// flips the user's premium flag. A transaction signature is accepted at most
// once across all users.
func (s *SubscriptionService) Upgrade(ctx context.Context, userID uuid.UUID, plan, txSignature string) (*UpgradeResult, error) {
	price, ok := planPrices[plan]
	if !ok {
		return nil, appErrors.New400Error("Invalid plan")
	}

	existing, err := s.subscriptions.BySignatureDB(txSignature)
	if err != nil {
		return nil, appErrors.LogAndReturn500(fmt.Errorf("failed to check signature: %w", err))
	}
	if existing != nil {
		return nil, appErrors.New400Error("This transaction has already been used")
	}

	verification := s.verifier.VerifyTransaction(ctx, txSignature, price, s.treasury)
	if !verification.Valid {
		log.Warn().
			Str("userID", userID.String()).
			Str("code", verification.Code).
			Msg("Transaction verification failed")
		return nil, appErrors.New400Error(verification.Error)
	}

	tier := NormalizeTier(plan)
	expiry := time.Now().UTC().Add(subscriptionDuration)
	if err := s.subscriptions.UpsertSubscriptionDB(userID, string(tier), txSignature, expiry); err != nil {
		return nil, appErrors.LogAndReturn500(fmt.Errorf("failed to record subscription: %w", err))
	}
	if err := s.users.SetPremium(userID, true); err != nil {
		return nil, appErrors.LogAndReturn500(fmt.Errorf("failed to update premium flag: %w", err))
	}

	log.Info().
		Str("userID", userID.String()).
		Str("plan", string(tier)).
		Str("status", verification.Status).
		Msg("Subscription upgraded")

	return &UpgradeResult{
		Success:   true,
		Plan:      string(tier),
		Expiry:    expiry,
		Message:   fmt.Sprintf("Successfully upgraded to %s", tier),
		IsPremium: true,
	}, nil
}

// Cancel marks the user's subscription cancelled and clears the premium
// flag. The subscription row is kept for history.
func (s *SubscriptionService) Cancel(userID uuid.UUID) (*PlanInfo, error) {
	if err := s.subscriptions.CancelSubscriptionDB(userID); err != nil {
		return nil, appErrors.LogAndReturn500(fmt.Errorf("failed to cancel subscription: %w", err))
	}
	if err := s.users.SetPremium(userID, false); err != nil {
		return nil, appErrors.LogAndReturn500(fmt.Errorf("failed to update premium flag: %w", err))
	}

	log.Info().Str("userID", userID.String()).Msg("Subscription cancelled")
	return &PlanInfo{Plan: string(TierFree)}, nil
}
