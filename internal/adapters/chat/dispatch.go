package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Wombatlord/marain-chat-server/internal/domain"
)

// dispatch merges two sources onto the wire: the broadcast channel (chat
// payloads from this connection's own ingress, fanned out to room peers)
// and the private inbox (replies and catch-up replays addressed to this
// user). It exits when the broadcast channel closes, draining whatever the
// inbox still holds.
func (ctl *Controller) dispatch(ctx context.Context, user *domain.User, conn *Conn, bcastCh <-chan []byte) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer ticker.Stop()

	outbox := conn.Outbox()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "chat.dispatch").Uint64("user", uint64(user.ID())).Msg("server shutdown")
			conn.Close()
			return

		case payload, ok := <-bcastCh:
			if !ok {
				ctl.drainOutbox(conn)
				return
			}
			key, ok := ctl.registry.RoomOf(user.ID())
			if !ok {
				log.Error().Str("module", "chat.dispatch").Uint64("user", uint64(user.ID())).Msg("sender has no room, dropping broadcast")
				continue
			}
			room, err := ctl.registry.Get(key)
			if err != nil {
				log.Error().Err(err).Str("module", "chat.dispatch").Uint64("user", uint64(user.ID())).Uint64("room", uint64(key)).Msg("sender's room vanished, dropping broadcast")
				continue
			}
			room.Broadcast(user.ID(), payload)

		case payload, ok := <-outbox:
			if !ok {
				return
			}
			if err := conn.WriteFrame(payload, ctl.cfg.WriteTimeout); err != nil {
				log.Error().Err(err).Str("module", "chat.dispatch").Uint64("user", uint64(user.ID())).Msg("write error")
				return
			}

		case <-ticker.C:
			if err := conn.Ping(ctl.cfg.WriteTimeout); err != nil {
				log.Debug().Err(err).Str("module", "chat.dispatch").Uint64("user", uint64(user.ID())).Msg("ping failed")
				return
			}
		}
	}
}

// drainOutbox writes whatever is still queued on the inbox after the
// upstream router has exited. Best effort: the socket is usually already
// closed by then.
func (ctl *Controller) drainOutbox(conn *Conn) {
	for payload := range conn.Outbox() {
		if err := conn.WriteFrame(payload, ctl.cfg.WriteTimeout); err != nil {
			return
		}
	}
}
