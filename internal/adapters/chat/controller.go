// Package chat is the websocket adapter around the room core: it upgrades
// connections, admits users into the hub, and runs the four workers that
// make up one connection's pipeline (ingress router, command processor,
// migration service, egress dispatcher).
package chat

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Wombatlord/marain-chat-server/internal/config"
	"github.com/Wombatlord/marain-chat-server/internal/core"
	"github.com/Wombatlord/marain-chat-server/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	registry *core.Registry
	cfg      *config.Config
	limiter  *MessageRateLimiter
	nextID   atomic.Uint64
}

func NewController(registry *core.Registry, cfg *config.Config) *Controller {
	return &Controller{
		registry: registry,
		cfg:      cfg,
		limiter:  NewMessageRateLimiter(cfg.RateLimit, cfg.RateInterval),
	}
}

// HandleChat upgrades the request, admits the user into the hub, and spawns
// the connection's workers. Admission happens exactly once, before any
// worker starts.
func (ctl *Controller) HandleChat(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "chat").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.cfg.ReadLimit)

	id := domain.UserID(ctl.nextID.Add(1) - 1)
	user := domain.NewUser(id, domain.HubRoomKey())
	conn := NewConn(ws, ctl.cfg.SendBuffer)
	log.Info().Str("module", "chat").Uint64("user", uint64(id)).Str("token", token).Str("addr", c.Request.RemoteAddr).Msg("new connection")

	ctl.registry.Admit(user, conn)

	cmdCh := make(chan []byte, 32)
	bcastCh := make(chan []byte, 32)
	mvCh := make(chan string, 8)

	go ctl.ingress(user, conn, cmdCh, bcastCh)
	go ctl.commands(user, cmdCh, mvCh)
	go ctl.migrations(user, mvCh)
	go ctl.dispatch(ctx, user, conn, bcastCh)
}
