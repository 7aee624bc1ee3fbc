package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Wombatlord/marain-chat-server/internal/adapters/chat"
	"github.com/Wombatlord/marain-chat-server/internal/config"
	"github.com/Wombatlord/marain-chat-server/internal/core"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Mode:         "release",
		ReadLimit:    32768,
		PingPeriod:   54 * time.Second,
		WriteTimeout: time.Second,
		HistoryLimit: 64,
		SendBuffer:   32,
		RateLimit:    25,
		RateInterval: time.Second,
	}
	ctl := chat.NewController(core.NewRegistry(cfg.HistoryLimit), cfg)
	return SetupRouter(context.Background(), cfg, ctl)
}

func TestHealthz(t *testing.T) {
	req := require.New(t)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	testRouter(t).ServeHTTP(w, r)

	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"status":"ok"}`, w.Body.String())
}

func TestClientTokenCookieIssued(t *testing.T) {
	req := require.New(t)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	testRouter(t).ServeHTTP(w, r)

	cookies := w.Result().Cookies()
	found := false
	for _, c := range cookies {
		if c.Name == "ct" && c.Value != "" {
			found = true
		}
	}
	req.True(found, "expected a ct cookie on first visit")
}

func TestWsEndpointRejectsPlainHTTP(t *testing.T) {
	// Without an Upgrade header the handshake fails and nothing hangs.
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)

	testRouter(t).ServeHTTP(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
