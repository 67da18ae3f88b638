package wsocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"daochat_go_backend/internal/models"
	"daochat_go_backend/internal/services"
	"daochat_go_backend/internal/utils/broker"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQuotaGuard struct {
	info services.RateLimitInfo
}

func (s *stubQuotaGuard) Check(userID uuid.UUID) services.RateLimitInfo {
	return s.info
}

func (s *stubQuotaGuard) Enforce(userID uuid.UUID) (services.RateLimitInfo, error) {
	return s.info, nil
}

type stubUsageService struct{}

func (s *stubUsageService) LogAPIUsage(userID uuid.UUID, conversationID uint, inputTokens, outputTokens int, cost decimal.Decimal) error {
	return nil
}
func (s *stubUsageService) MessageCountToday(userID uuid.UUID) (int, error)     { return 0, nil }
func (s *stubUsageService) IncrementMessageCountToday(userID uuid.UUID) error   { return nil }
func (s *stubUsageService) MonthlyCost(userID uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
func (s *stubUsageService) StartSession(userID uuid.UUID) (uint, error)       { return 1, nil }
func (s *stubUsageService) EndSession(sessionID uint) error                   { return nil }
func (s *stubUsageService) ActiveHoursToday(userID uuid.UUID) (float64, error) { return 0, nil }
func (s *stubUsageService) DashboardStats(userID uuid.UUID) (*services.DashboardStats, error) {
	return &services.DashboardStats{}, nil
}

func wsTestServer(t *testing.T, refreshInterval time.Duration) (*httptest.Server, *broker.Broker, *models.User) {
	t.Helper()

	user := &models.User{ID: uuid.New()}
	messageBroker := broker.NewBroker()
	handler := NewHandler(
		&stubQuotaGuard{info: services.RateLimitInfo{Tier: services.TierFree}},
		&stubUsageService{},
		websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		refreshInterval,
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.HandleWebSocket(w, r, user, messageBroker)
	}))
	t.Cleanup(srv.Close)
	return srv, messageBroker, user
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHandleWebSocketSendsInitialSnapshot(t *testing.T) {
	srv, _, _ := wsTestServer(t, time.Hour)
	conn := dial(t, srv)

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "usage_update", msg.Type)
	assert.NotNil(t, msg.Content)
}

func TestHandleWebSocketRepliesPong(t *testing.T) {
	srv, _, _ := wsTestServer(t, time.Hour)
	conn := dial(t, srv)

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg)) // initial snapshot

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pong", msg.Type)
}

func TestHandleWebSocketForwardsBrokerUpdates(t *testing.T) {
	srv, messageBroker, user := wsTestServer(t, time.Hour)
	conn := dial(t, srv)

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg)) // initial snapshot

	// Subscription happens inside the handler before the snapshot write,
	// so by now the topic has a listener.
	messageBroker.Publish(broker.UsageTopic(user.ID.String()), services.RateLimitInfo{Tier: services.TierPro})

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "usage_update", msg.Type)
}

// The connection must survive client requests arriving while the periodic
// refresh is firing. All writes go through one goroutine, so a burst of
// get_usage requests racing the ticker yields only well-formed frames.
func TestHandleWebSocketSurvivesRequestsDuringRefresh(t *testing.T) {
	srv, _, _ := wsTestServer(t, 200*time.Microsecond)
	conn := dial(t, srv)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			if err := conn.WriteJSON(Message{Type: "get_usage"}); err != nil {
				return
			}
		}
	}()

	pushed := 0
	for pushed < 60 {
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "usage_update", msg.Type)
		pushed++
	}
	<-done
}
