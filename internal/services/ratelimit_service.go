package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	DimensionMessages = "messages"
	DimensionCost     = "cost"
)

// MessageWindow reports daily message usage against the tier limit.
type MessageWindow struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// CostWindow reports monthly cost usage, rounded to 4 decimal places.
type CostWindow struct {
	Used      float64 `json:"used"`
	Limit     float64 `json:"limit"`
	Remaining float64 `json:"remaining"`
}

// RateLimitInfo is a derived, never-persisted snapshot of a caller's budgets.
type RateLimitInfo struct {
	Tier     Tier          `json:"tier"`
	Messages MessageWindow `json:"messages"`
	Cost     CostWindow    `json:"cost"`
	ResetAt  time.Time     `json:"reset_at"`
}

// QuotaExceededError carries the first violated dimension, current usage, the
// limit and when that dimension resets.
type QuotaExceededError struct {
	Dimension      string
	Tier           Tier
	MessagesUsed   int
	MessagesLimit  int
	CostUsed       decimal.Decimal
	CostLimit      decimal.Decimal
	ResetAt        time.Time
	UpgradeMessage string
}

func (e *QuotaExceededError) Error() string {
	if e.Dimension == DimensionCost {
		return fmt.Sprintf("Monthly cost limit reached (%s/%s)",
			e.CostUsed.StringFixed(4), e.CostLimit.StringFixed(2))
	}
	return fmt.Sprintf("Daily message limit reached (%d/%d)", e.MessagesUsed, e.MessagesLimit)
}

// Payload is the structured body sent alongside 429 responses and terminal
// stream errors.
func (e *QuotaExceededError) Payload() map[string]interface{} {
	payload := map[string]interface{}{
		"dimension": e.Dimension,
		"tier":      string(e.Tier),
		"reset_at":  e.ResetAt.Format(time.RFC3339),
	}
	if e.Dimension == DimensionCost {
		payload["cost_used"], _ = e.CostUsed.Round(4).Float64()
		payload["cost_limit"], _ = e.CostLimit.Float64()
	} else {
		payload["used"] = e.MessagesUsed
		payload["limit"] = e.MessagesLimit
		payload["remaining"] = 0
	}
	if e.UpgradeMessage != "" {
		payload["upgrade_message"] = e.UpgradeMessage
	}
	return payload
}

// RateLimitService decides admission from a resolved tier and a live usage
// snapshot. It performs reads only; counters move elsewhere.
type RateLimitService struct {
	tiers *TierService
	usage UsageServiceDB
	now   func() time.Time
}

func NewRateLimitService(tiers *TierService, usage UsageServiceDB) *RateLimitService {
	return &RateLimitService{
		tiers: tiers,
		usage: usage,
		now:   time.Now,
	}
}

// Check returns the caller's current rate limit status without side effects.
// It never fails: internal errors degrade to permissive free-tier defaults so
// a read-only status check cannot be blocked.
func (s *RateLimitService) Check(userID uuid.UUID) RateLimitInfo {
	info, err := s.snapshot(userID)
	if err != nil {
		log.Error().Err(err).Str("userID", userID.String()).Msg("Failed to check rate limit, returning permissive defaults")
		limits := s.tiers.limits[TierFree]
		costLimit, _ := limits.MonthlyCostLimit.Float64()
		return RateLimitInfo{
			Tier:     TierFree,
			Messages: MessageWindow{Used: 0, Limit: limits.DailyMessageLimit, Remaining: limits.DailyMessageLimit},
			Cost:     CostWindow{Used: 0, Limit: costLimit, Remaining: costLimit},
			ResetAt:  nextUTCMidnight(s.now()),
		}
	}
	return info
}

// Enforce recomputes the same decision and rejects when either budget is
// already spent. Message count is checked first, then cost; only the first
// violated dimension is reported. Enforcement always precedes the paid
// generation call.
func (s *RateLimitService) Enforce(userID uuid.UUID) (RateLimitInfo, error) {
	tier, limits := s.tiers.ResolveTier(userID)

	messageCount, err := s.usage.MessageCountToday(userID)
	if err != nil {
		return RateLimitInfo{}, fmt.Errorf("failed to read daily message count: %w", err)
	}
	if messageCount >= limits.DailyMessageLimit {
		return RateLimitInfo{}, &QuotaExceededError{
			Dimension:      DimensionMessages,
			Tier:           tier,
			MessagesUsed:   messageCount,
			MessagesLimit:  limits.DailyMessageLimit,
			ResetAt:        nextUTCMidnight(s.now()),
			UpgradeMessage: upgradeMessage(tier),
		}
	}

	monthlyCost, err := s.usage.MonthlyCost(userID)
	if err != nil {
		return RateLimitInfo{}, fmt.Errorf("failed to read monthly cost: %w", err)
	}
	// Admission uses accumulated cost, not projected post-call cost; one
	// expensive call can land over budget and only the next request is
	// rejected.
	if monthlyCost.GreaterThanOrEqual(limits.MonthlyCostLimit) {
		return RateLimitInfo{}, &QuotaExceededError{
			Dimension:      DimensionCost,
			Tier:           tier,
			CostUsed:       monthlyCost,
			CostLimit:      limits.MonthlyCostLimit,
			ResetAt:        startOfNextMonth(s.now()),
			UpgradeMessage: upgradeMessage(tier),
		}
	}

	return buildRateLimitInfo(tier, limits, messageCount, monthlyCost, nextUTCMidnight(s.now())), nil
}

func (s *RateLimitService) snapshot(userID uuid.UUID) (RateLimitInfo, error) {
	tier, limits := s.tiers.ResolveTier(userID)

	messageCount, err := s.usage.MessageCountToday(userID)
	if err != nil {
		return RateLimitInfo{}, err
	}
	monthlyCost, err := s.usage.MonthlyCost(userID)
	if err != nil {
		return RateLimitInfo{}, err
	}
	return buildRateLimitInfo(tier, limits, messageCount, monthlyCost, nextUTCMidnight(s.now())), nil
}

func buildRateLimitInfo(tier Tier, limits TierLimits, messagesUsed int, costUsed decimal.Decimal, resetAt time.Time) RateLimitInfo {
	messagesRemaining := limits.DailyMessageLimit - messagesUsed
	if messagesRemaining < 0 {
		messagesRemaining = 0
	}

	costLimit, _ := limits.MonthlyCostLimit.Float64()
	costUsedRounded, _ := costUsed.Round(4).Float64()
	costRemaining := limits.MonthlyCostLimit.Sub(costUsed)
	if costRemaining.IsNegative() {
		costRemaining = decimal.Zero
	}
	costRemainingRounded, _ := costRemaining.Round(4).Float64()

	return RateLimitInfo{
		Tier: tier,
		Messages: MessageWindow{
			Used:      messagesUsed,
			Limit:     limits.DailyMessageLimit,
			Remaining: messagesRemaining,
		},
		Cost: CostWindow{
			Used:      costUsedRounded,
			Limit:     costLimit,
			Remaining: costRemainingRounded,
		},
		ResetAt: resetAt,
	}
}

func upgradeMessage(tier Tier) string {
	if tier == TierFree {
		return "Upgrade your plan for higher limits"
	}
	return ""
}

// nextUTCMidnight returns the first instant of the next UTC day.
func nextUTCMidnight(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// startOfNextMonth returns the first instant of the next calendar month (UTC).
func startOfNextMonth(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
