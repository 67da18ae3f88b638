package api

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestSetupRoutesRegistersFullSurface(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupRoutes(r, func(c *gin.Context) { c.Next() }, Services{})

	registered := make(map[string]bool)
	for _, route := range r.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	expected := []string{
		"GET /health",
		"POST /api/chat/new",
		"POST /api/chat/send",
		"POST /api/chat/new/stream",
		"POST /api/chat/send/stream",
		"GET /api/chat/list",
		"GET /api/chat/history/:conversation_id",
		"PATCH /api/chat/title",
		"DELETE /api/chat/:conversation_id",
		"GET /api/rate-limit/check",
		"GET /api/dashboard/stats",
		"GET /api/subscription/plan",
		"POST /api/subscription/upgrade",
		"POST /api/subscription/cancel",
	}
	for _, want := range expected {
		assert.True(t, registered[want], "missing route %s", want)
	}
}
