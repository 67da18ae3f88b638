package wsocket

import (
	"context"
	"net/http"
	"time"

	"daochat_go_backend/internal/models"
	"daochat_go_backend/internal/services"
	"daochat_go_backend/internal/utils/broker"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Handler pushes usage and rate limit updates to connected clients and
// tracks session start and end for active-hours accounting.
type Handler struct {
	quota           services.QuotaGuard
	usage           services.UsageServiceDB
	upgrader        websocket.Upgrader
	refreshInterval time.Duration
}

type Message struct {
	Type    string      `json:"type"`
	Content interface{} `json:"content,omitempty"`
}

func NewHandler(quota services.QuotaGuard, usage services.UsageServiceDB, upgrader websocket.Upgrader, refreshInterval time.Duration) *Handler {
	return &Handler{
		quota:           quota,
		usage:           usage,
		upgrader:        upgrader,
		refreshInterval: refreshInterval,
	}
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request, user *models.User, messageBroker *broker.Broker) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	userID := user.ID.String()

	sessionID, err := h.usage.StartSession(user.ID)
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("Failed to start usage session")
	}
	defer func() {
		if sessionID != 0 {
			if err := h.usage.EndSession(sessionID); err != nil {
				log.Error().Err(err).Str("userID", userID).Msg("Failed to end usage session")
			}
		}
	}()

	topic := broker.UsageTopic(userID)
	updates := messageBroker.Subscribe(topic)
	defer messageBroker.Unsubscribe(topic, updates)

	ticker := time.NewTicker(h.refreshInterval)
	defer ticker.Stop()

	// The connection supports a single concurrent writer, so every
	// WriteJSON happens on this goroutine. The read loop only forwards
	// client requests over a channel for the select below to serve.
	requests := make(chan string, 8)
	go func() {
		defer cancel()
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case requests <- msg.Type:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Initial snapshot so the client renders usage immediately.
	if err := conn.WriteJSON(Message{Type: "usage_update", Content: h.quota.Check(user.ID)}); err != nil {
		log.Debug().Err(err).Msg("Failed to send initial usage snapshot")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(Message{Type: "usage_update", Content: msg}); err != nil {
				log.Debug().Err(err).Msg("Failed to push usage update")
				return
			}
		case <-ticker.C:
			if err := conn.WriteJSON(Message{Type: "usage_update", Content: h.quota.Check(user.ID)}); err != nil {
				log.Debug().Err(err).Msg("Failed to push periodic usage update")
				return
			}
		case reqType := <-requests:
			switch reqType {
			case "get_usage":
				if err := conn.WriteJSON(Message{Type: "usage_update", Content: h.quota.Check(user.ID)}); err != nil {
					return
				}
			case "ping":
				if err := conn.WriteJSON(Message{Type: "pong"}); err != nil {
					return
				}
			default:
				log.Debug().Str("type", reqType).Msg("Unknown websocket message type")
			}
		}
	}
}
