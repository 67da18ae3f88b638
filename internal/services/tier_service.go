package services

import (
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Tier is the closed set of subscription levels. Every consumption site
// switches exhaustively over these three values.
type Tier string

const (
	TierFree  Tier = "free"
	TierPro   Tier = "pro"
	TierElite Tier = "elite"
)

// tierAliases maps legacy plan names, numeric tier codes and known
// misspellings onto the canonical set.
var tierAliases = map[string]Tier{
	"free":    TierFree,
	"pro":     TierPro,
	"elite":   TierElite,
	"premium": TierElite,
	"premuim": TierElite, // legacy typo kept in old subscription rows
	"tier1":   TierPro,
	"tier_1":  TierPro,
	"tier2":   TierElite,
	"tier_2":  TierElite,
}

// NormalizeTier resolves an arbitrary plan string to a canonical tier.
// Unknown names resolve to free so a malformed subscription row never blocks
// a caller from a restricted chat.
func NormalizeTier(plan string) Tier {
	if tier, ok := tierAliases[strings.ToLower(strings.TrimSpace(plan))]; ok {
		return tier
	}
	return TierFree
}

// TierLimits is the per-tier budget configuration.
type TierLimits struct {
	DailyMessageLimit int
	MonthlyCostLimit  decimal.Decimal
}

// PremiumFlagStore reports the legacy is_premium flag used when no
// subscription row exists.
type PremiumFlagStore interface {
	IsPremium(userID uuid.UUID) (bool, error)
}

type TierService struct {
	subscriptions SubscriptionServiceDB
	users         PremiumFlagStore
	limits        map[Tier]TierLimits
}

func NewTierService(subscriptions SubscriptionServiceDB, users PremiumFlagStore, limits map[Tier]TierLimits) *TierService {
	return &TierService{
		subscriptions: subscriptions,
		users:         users,
		limits:        limits,
	}
}

// DefaultTierLimits returns the shipped budget table.
func DefaultTierLimits(freeDaily, proDaily, eliteDaily int, freeCost, proCost, eliteCost decimal.Decimal) map[Tier]TierLimits {
	return map[Tier]TierLimits{
		TierFree:  {DailyMessageLimit: freeDaily, MonthlyCostLimit: freeCost},
		TierPro:   {DailyMessageLimit: proDaily, MonthlyCostLimit: proCost},
		TierElite: {DailyMessageLimit: eliteDaily, MonthlyCostLimit: eliteCost},
	}
}

// ResolveTier maps a caller to a tier and its limits. Any failure to reach
// the subscription store degrades to free; resolution never errors and never
// surfaces store problems to the caller.
func (s *TierService) ResolveTier(userID uuid.UUID) (Tier, TierLimits) {
	tier := s.lookupTier(userID)
	limits, ok := s.limits[tier]
	if !ok {
		tier = TierFree
		limits = s.limits[TierFree]
	}
	return tier, limits
}

func (s *TierService) lookupTier(userID uuid.UUID) Tier {
	plan, err := s.subscriptions.ActivePlanDB(userID)
	if err != nil {
		log.Warn().Err(err).Str("userID", userID.String()).Msg("Failed to read subscription, defaulting to free tier")
		return TierFree
	}
	if plan != "" {
		return NormalizeTier(plan)
	}

	// No subscription row: fall back to the legacy premium flag.
	premium, err := s.users.IsPremium(userID)
	if err != nil {
		log.Warn().Err(err).Str("userID", userID.String()).Msg("Failed to read premium flag, defaulting to free tier")
		return TierFree
	}
	if premium {
		return TierElite
	}
	return TierFree
}
