package chat

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Wombatlord/marain-chat-server/internal/core"
	"github.com/Wombatlord/marain-chat-server/internal/domain"
)

// commands consumes the command channel. Protocol errors (unknown verb,
// missing argument) are answered on the sender's own inbox; consistency
// errors are logged and the message dropped, never killing the worker.
// Room mutation is not done here: /mv only forwards the destination name to
// the migration service, so this worker never holds registry state while
// handling a command that would re-enter it.
func (ctl *Controller) commands(user *domain.User, cmdCh <-chan []byte, mvCh chan<- string) {
	defer close(mvCh)
	for raw := range cmdCh {
		ctl.handleCommand(user, raw, mvCh)
	}
}

func (ctl *Controller) handleCommand(user *domain.User, raw []byte, mvCh chan<- string) {
	key, ok := ctl.registry.RoomOf(user.ID())
	if !ok {
		log.Error().Str("module", "chat.commands").Uint64("user", uint64(user.ID())).Msg("sender has no room, dropping command")
		return
	}
	room, err := ctl.registry.Get(key)
	if err != nil {
		log.Error().Err(err).Str("module", "chat.commands").Uint64("user", uint64(user.ID())).Uint64("room", uint64(key)).Msg("sender's room vanished, dropping command")
		return
	}
	inbox, ok := room.Inbox(user.ID())
	if !ok {
		log.Error().Str("module", "chat.commands").Uint64("user", uint64(user.ID())).Str("room", string(room.Name())).Msg("sender not in own room, dropping command")
		return
	}

	tokens := strings.Fields(string(raw))
	if len(tokens) == 0 {
		return
	}

	switch tokens[0] {
	case "/time":
		reply(inbox, time.Now().UTC().Format(time.RFC3339))

	case "/mv":
		if len(tokens) < 2 {
			reply(inbox, "usage: /mv <room>")
			return
		}
		mvCh <- tokens[1]

	case "/who":
		names := room.OccupantNames()
		log.Info().Str("module", "chat.commands").Str("room", string(room.Name())).Strs("occupants", names).Msg("occupant listing")
		reply(inbox, "occupants: "+strings.Join(names, ", "))

	case "/crm":
		keyStr := strconv.FormatUint(uint64(key), 10)
		log.Info().Str("module", "chat.commands").Uint64("user", uint64(user.ID())).Str("room_key", keyStr).Msg("current room")
		reply(inbox, "current room: "+keyStr)

	case "/name":
		if len(tokens) < 2 {
			reply(inbox, "usage: /name <display-name>")
			return
		}
		if err := user.SetName(tokens[1]); err != nil {
			reply(inbox, "invalid name: "+err.Error())
			return
		}
		reply(inbox, "you are now "+tokens[1])

	default:
		reply(inbox, "No such command")
	}
}

func reply(inbox core.Inbox, text string) {
	if err := inbox.TrySend([]byte(text)); err != nil {
		log.Debug().Err(err).Str("module", "chat.commands").Msg("reply dropped")
	}
}
