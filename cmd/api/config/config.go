package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Config holds every tunable the backend reads at startup. Values come from
// the environment, optionally seeded by a .env file in development.
type Config struct {
	Port           string `envconfig:"PORT" default:"3000"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`

	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD" default:""`
	DBName     string `envconfig:"DB_NAME" default:"daochat"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`

	GoogleAPIKey      string `envconfig:"GOOGLE_API_KEY" required:"true"`
	SupabaseJWTSecret string `envconfig:"SUPABASE_JWT_SECRET" required:"true"`

	TreasuryWallet    string `envconfig:"TREASURY_WALLET"`
	SolanaRPCEndpoint string `envconfig:"SOLANA_RPC_ENDPOINT" default:"https://api.mainnet-beta.solana.com"`

	FreeTierDailyLimit  int `envconfig:"FREE_TIER_DAILY_LIMIT" default:"5"`
	ProTierDailyLimit   int `envconfig:"PRO_TIER_DAILY_LIMIT" default:"10"`
	EliteTierDailyLimit int `envconfig:"ELITE_TIER_DAILY_LIMIT" default:"20"`

	FreeTierMonthlyCostLimit  float64 `envconfig:"FREE_TIER_MONTHLY_COST_LIMIT" default:"10.0"`
	ProTierMonthlyCostLimit   float64 `envconfig:"PRO_TIER_MONTHLY_COST_LIMIT" default:"50.0"`
	EliteTierMonthlyCostLimit float64 `envconfig:"ELITE_TIER_MONTHLY_COST_LIMIT" default:"200.0"`

	MaxContextMessages int `envconfig:"MAX_CONTEXT_MESSAGES" default:"20"`
	MaxMessageLength   int `envconfig:"MAX_MESSAGE_LENGTH" default:"4000"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) FreeMonthlyCostLimit() decimal.Decimal {
	return decimal.NewFromFloat(c.FreeTierMonthlyCostLimit)
}

func (c *Config) ProMonthlyCostLimit() decimal.Decimal {
	return decimal.NewFromFloat(c.ProTierMonthlyCostLimit)
}

func (c *Config) EliteMonthlyCostLimit() decimal.Decimal {
	return decimal.NewFromFloat(c.EliteTierMonthlyCostLimit)
}
