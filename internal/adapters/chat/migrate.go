package chat

import (
	"github.com/rs/zerolog/log"

	"github.com/Wombatlord/marain-chat-server/internal/domain"
)

// migrations consumes the migration channel: one destination room name per
// message. The registry makes remove-from-old, insert-into-new atomic; this
// worker then delivers the destination's history replay to the user's own
// inbox and only marks the user caught up once that replay is enqueued.
func (ctl *Controller) migrations(user *domain.User, mvCh <-chan string) {
	for name := range mvCh {
		room, inbox, err := ctl.registry.Migrate(user.ID(), domain.RoomName(name))
		if err != nil {
			log.Error().Err(err).Str("module", "chat.migrate").Uint64("user", uint64(user.ID())).Str("to", name).Msg("migration aborted")
			continue
		}

		replay := room.JoinedHistory()
		if err := inbox.TrySend([]byte(replay)); err != nil {
			log.Debug().Err(err).Str("module", "chat.migrate").Uint64("user", uint64(user.ID())).Msg("catch-up dropped")
		}
		user.SetCaughtUp(true)
		log.Info().Str("module", "chat.migrate").Uint64("user", uint64(user.ID())).Str("room", string(room.Name())).Msg("moved")
	}
}
