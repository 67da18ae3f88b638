package api

import (
	"net/http"

	"daochat_go_backend/internal/auth"
	appErrors "daochat_go_backend/internal/errors"
	"daochat_go_backend/internal/services"

	"github.com/gin-gonic/gin"
)

type upgradeRequest struct {
	Plan        string `json:"plan"`
	TxSignature string `json:"txSignature"`
}

func subscriptionPlanHandler(subscriptions *services.SubscriptionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			appErrors.HandleError(c, appErrors.New401Error())
			return
		}

		plan, err := subscriptions.Plan(user.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, plan)
	}
}

func subscriptionUpgradeHandler(subscriptions *services.SubscriptionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			appErrors.HandleError(c, appErrors.New401Error())
			return
		}

		var req upgradeRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Plan == "" || req.TxSignature == "" {
			appErrors.HandleError(c, appErrors.New400Error("plan and txSignature are required"))
			return
		}

		result, err := subscriptions.Upgrade(c.Request.Context(), user.ID, req.Plan, req.TxSignature)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func subscriptionCancelHandler(subscriptions *services.SubscriptionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			appErrors.HandleError(c, appErrors.New401Error())
			return
		}

		plan, err := subscriptions.Cancel(user.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"plan":       plan.Plan,
			"message":    "Subscription cancelled",
			"is_premium": plan.IsPremium,
		})
	}
}
