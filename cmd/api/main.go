package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"daochat_go_backend/cmd/api/config"
	"daochat_go_backend/internal/api"
	"daochat_go_backend/internal/auth"
	"daochat_go_backend/internal/database"
	"daochat_go_backend/internal/services"
	"daochat_go_backend/internal/utils/broker"
	"daochat_go_backend/internal/wsocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/generative-ai-go/genai"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("PRETTY_LOGS") != "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()

	database.InitDB(cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	genaiClient, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GoogleAPIKey))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GenAI client")
	}
	defer genaiClient.Close()

	// Persistence layer
	conversationService := services.NewConversationServiceDB(database.DB)
	usageService := services.NewUsageServiceDB(database.DB)
	subscriptionServiceDB := services.NewSubscriptionServiceDB(database.DB)
	userService := services.NewUserService(database.DB)

	// Domain services
	tierLimits := services.DefaultTierLimits(
		cfg.FreeTierDailyLimit, cfg.ProTierDailyLimit, cfg.EliteTierDailyLimit,
		cfg.FreeMonthlyCostLimit(), cfg.ProMonthlyCostLimit(), cfg.EliteMonthlyCostLimit(),
	)
	tierService := services.NewTierService(subscriptionServiceDB, userService, tierLimits)
	rateLimitService := services.NewRateLimitService(tierService, usageService)
	contextService := services.NewContextService(conversationService, cfg.MaxContextMessages)
	geminiService := services.NewGeminiService(services.NewGoogleGenerationBackend(genaiClient), usageService)

	messageBroker := broker.NewBroker()

	streamController := services.NewStreamSessionController(
		rateLimitService,
		conversationService,
		contextService,
		geminiService,
		usageService,
		messageBroker,
		cfg.MaxMessageLength,
	)
	chatService := services.NewChatService(
		rateLimitService,
		conversationService,
		contextService,
		geminiService,
		usageService,
		cfg.MaxMessageLength,
	)

	solanaService := services.NewSolanaService(cfg.SolanaRPCEndpoint)
	subscriptionService := services.NewSubscriptionService(subscriptionServiceDB, userService, solanaService, cfg.TreasuryWallet)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.AllowedOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	authMiddleware := auth.NewMiddleware(cfg.SupabaseJWTSecret, userService)

	api.SetupRoutes(r, authMiddleware.Handler(), api.Services{
		Chat:          chatService,
		Stream:        streamController,
		Conversations: conversationService,
		Quota:         rateLimitService,
		Usage:         usageService,
		Subscriptions: subscriptionService,
	})

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	wsHandler := wsocket.NewHandler(rateLimitService, usageService, upgrader, 30*time.Second)

	r.GET("/ws", authMiddleware.Handler(), func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		wsHandler.HandleWebSocket(c.Writer, c.Request, user, messageBroker)
	})

	log.Info().Str("port", cfg.Port).Msg("Server starting")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
