package api

import (
	"errors"
	"net/http"

	appErrors "daochat_go_backend/internal/errors"
	"daochat_go_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// Services bundles everything the HTTP layer depends on.
type Services struct {
	Chat          *services.ChatService
	Stream        *services.StreamSessionController
	Conversations services.ConversationServiceDB
	Quota         services.QuotaGuard
	Usage         services.UsageServiceDB
	Subscriptions *services.SubscriptionService
}

func SetupRoutes(r *gin.Engine, authMiddleware gin.HandlerFunc, deps Services) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(authMiddleware)
	{
		api.POST("/chat/new", newChatHandler(deps.Chat))
		api.POST("/chat/send", sendChatHandler(deps.Chat))
		api.POST("/chat/new/stream", streamChatHandler(deps.Stream, deps.Chat, true))
		api.POST("/chat/send/stream", streamChatHandler(deps.Stream, deps.Chat, false))
		api.GET("/chat/list", listChatsHandler(deps.Conversations))
		api.GET("/chat/history/:conversation_id", chatHistoryHandler(deps.Chat, deps.Conversations))
		api.PATCH("/chat/title", updateTitleHandler(deps.Conversations))
		api.DELETE("/chat/:conversation_id", deleteChatHandler(deps.Conversations))
		api.GET("/rate-limit/check", rateLimitCheckHandler(deps.Quota))
		api.GET("/dashboard/stats", dashboardStatsHandler(deps.Usage))
		api.GET("/subscription/plan", subscriptionPlanHandler(deps.Subscriptions))
		api.POST("/subscription/upgrade", subscriptionUpgradeHandler(deps.Subscriptions))
		api.POST("/subscription/cancel", subscriptionCancelHandler(deps.Subscriptions))
	}
}

// respondError maps service errors onto the wire, turning quota rejections
// into structured 429 responses.
func respondError(c *gin.Context, err error) {
	var quotaErr *services.QuotaExceededError
	if errors.As(err, &quotaErr) {
		appErrors.HandleError(c, appErrors.New429Error(quotaErr.Error(), quotaErr.Payload()))
		return
	}
	appErrors.HandleError(c, err)
}
