package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"daochat_go_backend/internal/auth"
	appErrors "daochat_go_backend/internal/errors"
	"daochat_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type chatRequest struct {
	Message        string   `json:"message"`
	ConversationID uint     `json:"conversation_id"`
	Images         []string `json:"images"`
}

type updateTitleRequest struct {
	ConversationID uint   `json:"conversation_id"`
	Title          string `json:"title"`
}

const maxTitleLength = 200

func newChatHandler(chat *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			appErrors.HandleError(c, appErrors.New401Error())
			return
		}

		var req chatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			appErrors.HandleError(c, appErrors.New400Error("Invalid request body"))
			return
		}

		reply, err := chat.StartConversation(c.Request.Context(), user, req.Message, req.Images)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, reply)
	}
}

// sendChatHandler is the buffered counterpart of the send stream: one JSON
// reply on an existing conversation the caller owns.
func sendChatHandler(chat *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			appErrors.HandleError(c, appErrors.New401Error())
			return
		}

		var req chatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			appErrors.HandleError(c, appErrors.New400Error("Invalid request body"))
			return
		}
		if req.ConversationID == 0 {
			appErrors.HandleError(c, appErrors.New400Error("conversation_id is required"))
			return
		}

		reply, err := chat.SendMessage(c.Request.Context(), user, req.ConversationID, req.Message, req.Images)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, reply)
	}
}

// streamChatHandler serves both stream endpoints. When newConversation is
// false the request must name an existing conversation the user owns, and
// that is checked before the stream opens so failures are plain JSON.
func streamChatHandler(controller *services.StreamSessionController, chat *services.ChatService, newConversation bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			appErrors.HandleError(c, appErrors.New401Error())
			return
		}

		var req chatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			appErrors.HandleError(c, appErrors.New400Error("Invalid request body"))
			return
		}

		if newConversation {
			req.ConversationID = 0
		} else {
			if req.ConversationID == 0 {
				appErrors.HandleError(c, appErrors.New400Error("conversation_id is required"))
				return
			}
			if err := chat.AuthorizeConversation(user, req.ConversationID); err != nil {
				respondError(c, err)
				return
			}
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		emit := func(event services.StreamEvent) bool {
			payload, err := json.Marshal(event)
			if err != nil {
				return false
			}
			if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
				return false
			}
			c.Writer.Flush()
			return c.Request.Context().Err() == nil
		}

		controller.Run(c.Request.Context(), services.ChatStreamRequest{
			User:           user,
			ConversationID: req.ConversationID,
			Message:        req.Message,
			Images:         req.Images,
		}, emit)
	}
}

func listChatsHandler(conversations services.ConversationServiceDB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			appErrors.HandleError(c, appErrors.New401Error())
			return
		}

		limit := 50
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 || parsed > 200 {
				appErrors.HandleError(c, appErrors.New400Error("limit must be between 1 and 200"))
				return
			}
			limit = parsed
		}

		summaries, err := conversations.ListConversationsDB(user.ID, limit)
		if err != nil {
			respondError(c, appErrors.LogAndReturn500(fmt.Errorf("failed to list conversations: %w", err)))
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversations": summaries})
	}
}

func chatHistoryHandler(chat *services.ChatService, conversations services.ConversationServiceDB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			appErrors.HandleError(c, appErrors.New401Error())
			return
		}

		conversationID, err := parseConversationID(c.Param("conversation_id"))
		if err != nil {
			appErrors.HandleError(c, err)
			return
		}

		if err := chat.AuthorizeConversation(user, conversationID); err != nil {
			respondError(c, err)
			return
		}

		messages, dbErr := conversations.MessagesDB(conversationID)
		if dbErr != nil {
			respondError(c, appErrors.LogAndReturn500(fmt.Errorf("failed to load messages: %w", dbErr)))
			return
		}

		history := make([]gin.H, 0, len(messages))
		for _, message := range messages {
			history = append(history, gin.H{
				"id":         message.ID,
				"role":       message.Role,
				"content":    message.Content,
				"created_at": message.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{"conversation_id": conversationID, "messages": history})
	}
}

func updateTitleHandler(conversations services.ConversationServiceDB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			appErrors.HandleError(c, appErrors.New401Error())
			return
		}

		var req updateTitleRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.ConversationID == 0 {
			appErrors.HandleError(c, appErrors.New400Error("Invalid request body"))
			return
		}

		title := strings.TrimSpace(req.Title)
		if title == "" || len(title) > maxTitleLength {
			appErrors.HandleError(c, appErrors.New400Error(fmt.Sprintf("title must be 1-%d characters", maxTitleLength)))
			return
		}

		if err := conversations.UpdateTitleDB(req.ConversationID, user.ID, title); err != nil {
			if isNotFound(err) {
				appErrors.HandleError(c, appErrors.New404Error("Conversation not found"))
				return
			}
			respondError(c, appErrors.LogAndReturn500(fmt.Errorf("failed to update title: %w", err)))
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversation_id": req.ConversationID, "title": title})
	}
}

func deleteChatHandler(conversations services.ConversationServiceDB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			appErrors.HandleError(c, appErrors.New401Error())
			return
		}

		conversationID, err := parseConversationID(c.Param("conversation_id"))
		if err != nil {
			appErrors.HandleError(c, err)
			return
		}

		deleted, dbErr := conversations.DeleteConversationDB(conversationID, user.ID)
		if dbErr != nil {
			respondError(c, appErrors.LogAndReturn500(fmt.Errorf("failed to delete conversation: %w", dbErr)))
			return
		}
		if !deleted {
			appErrors.HandleError(c, appErrors.New404Error("Conversation not found"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}

func rateLimitCheckHandler(quota services.QuotaGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			appErrors.HandleError(c, appErrors.New401Error())
			return
		}
		c.JSON(http.StatusOK, quota.Check(user.ID))
	}
}

func dashboardStatsHandler(usage services.UsageServiceDB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.CurrentUser(c)
		if !ok {
			appErrors.HandleError(c, appErrors.New401Error())
			return
		}

		stats, err := usage.DashboardStats(user.ID)
		if err != nil {
			respondError(c, appErrors.LogAndReturn500(fmt.Errorf("failed to load dashboard stats: %w", err)))
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func parseConversationID(raw string) (uint, *appErrors.CustomError) {
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || parsed == 0 {
		return 0, appErrors.New400Error("Invalid conversation id")
	}
	return uint(parsed), nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
