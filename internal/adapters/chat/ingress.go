package chat

import (
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Wombatlord/marain-chat-server/internal/domain"
)

const commandSentinel = '/'

// ingress owns the read side of the socket. It classifies each inbound
// frame as command or broadcast traffic, and it is the only place a
// disconnect is detected: on stream closure it removes the user from its
// room and closes the downstream channels, which unwinds the rest of the
// pipeline.
func (ctl *Controller) ingress(user *domain.User, conn *Conn, cmdCh chan<- []byte, bcastCh chan<- []byte) {
	defer func() {
		ctl.registry.Remove(user.ID())
		ctl.limiter.Forget(user.ID())
		conn.Close()
		close(cmdCh)
		close(bcastCh)
		log.Info().Str("module", "chat.ingress").Uint64("user", uint64(user.ID())).Msg("disconnected")
	}()

	for {
		mt, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("module", "chat.ingress").Uint64("user", uint64(user.ID())).Msg("read error")
			}
			return
		}

		// Control frames never reach here; gorilla handles ping/pong and
		// surfaces close as a read error.
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		if !ctl.limiter.Allow(user.ID()) {
			log.Warn().Str("module", "chat.ingress").Uint64("user", uint64(user.ID())).Msg("rate limit exceeded, frame discarded")
			continue
		}

		if len(data) > 0 && data[0] == commandSentinel {
			cmdCh <- data
		} else {
			bcastCh <- data
		}
	}
}
