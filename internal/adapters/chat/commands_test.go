package chat

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Wombatlord/marain-chat-server/internal/config"
	"github.com/Wombatlord/marain-chat-server/internal/core"
	"github.com/Wombatlord/marain-chat-server/internal/domain"
)

type fakeInbox struct {
	ch chan []byte
}

func newFakeInbox() *fakeInbox {
	return &fakeInbox{ch: make(chan []byte, 32)}
}

func (i *fakeInbox) TrySend(payload []byte) error {
	select {
	case i.ch <- payload:
		return nil
	default:
		return errors.New("inbox full")
	}
}

func (i *fakeInbox) reply(t *testing.T) string {
	t.Helper()
	select {
	case p := <-i.ch:
		return string(p)
	default:
		t.Fatal("expected a reply, inbox empty")
		return ""
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Mode:         "release",
		ListenAddr:   "127.0.0.1:0",
		ReadLimit:    32768,
		PingPeriod:   54 * time.Second,
		WriteTimeout: time.Second,
		HistoryLimit: 64,
		SendBuffer:   32,
		RateLimit:    1000,
		RateInterval: time.Second,
	}
}

func newTestPipeline(t *testing.T) (*Controller, *domain.User, *fakeInbox, chan string) {
	t.Helper()
	ctl := NewController(core.NewRegistry(64), testConfig())
	user := domain.NewUser(0, domain.HubRoomKey())
	inbox := newFakeInbox()
	ctl.registry.Admit(user, inbox)
	return ctl, user, inbox, make(chan string, 8)
}

func TestTimeCommandRepliesWithTimestamp(t *testing.T) {
	req := require.New(t)
	ctl, user, inbox, mvCh := newTestPipeline(t)

	ctl.handleCommand(user, []byte("/time"), mvCh)

	stamp := inbox.reply(t)
	_, err := time.Parse(time.RFC3339, stamp)
	req.NoError(err, "reply must parse as a timestamp: %q", stamp)
}

func TestMvForwardsDestinationName(t *testing.T) {
	req := require.New(t)
	ctl, user, _, mvCh := newTestPipeline(t)

	ctl.handleCommand(user, []byte("/mv lobby"), mvCh)

	select {
	case name := <-mvCh:
		req.Equal("lobby", name)
	default:
		req.Fail("expected the destination on the migration channel")
	}
}

func TestBareMvRepliesUsage(t *testing.T) {
	req := require.New(t)
	ctl, user, inbox, mvCh := newTestPipeline(t)

	ctl.handleCommand(user, []byte("/mv"), mvCh)

	req.Equal("usage: /mv <room>", inbox.reply(t))
	req.Empty(mvCh)
}

func TestWhoListsOccupants(t *testing.T) {
	req := require.New(t)
	ctl, user, inbox, mvCh := newTestPipeline(t)

	other := domain.NewUser(1, domain.HubRoomKey())
	req.NoError(other.SetName("wombat"))
	ctl.registry.Admit(other, newFakeInbox())

	ctl.handleCommand(user, []byte("/who"), mvCh)

	listing := inbox.reply(t)
	req.True(strings.HasPrefix(listing, "occupants: "))
	req.Contains(listing, "guest-0")
	req.Contains(listing, "wombat")
}

func TestCrmReportsCurrentRoomKey(t *testing.T) {
	req := require.New(t)
	ctl, user, inbox, mvCh := newTestPipeline(t)

	ctl.handleCommand(user, []byte("/crm"), mvCh)

	want := "current room: " + strconv.FormatUint(uint64(domain.HubRoomKey()), 10)
	req.Equal(want, inbox.reply(t))
}

func TestNameCommand(t *testing.T) {
	req := require.New(t)
	ctl, user, inbox, mvCh := newTestPipeline(t)

	ctl.handleCommand(user, []byte("/name wombat"), mvCh)
	req.Equal("you are now wombat", inbox.reply(t))
	req.Equal("wombat", user.Name())

	ctl.handleCommand(user, []byte("/name"), mvCh)
	req.Equal("usage: /name <display-name>", inbox.reply(t))
}

func TestUnknownCommandReplies(t *testing.T) {
	req := require.New(t)
	ctl, user, inbox, mvCh := newTestPipeline(t)

	ctl.handleCommand(user, []byte("/frobnicate now"), mvCh)
	req.Equal("No such command", inbox.reply(t))
}

func TestCommandFromEvictedUserIsDropped(t *testing.T) {
	req := require.New(t)
	ctl, user, inbox, mvCh := newTestPipeline(t)

	// Simulate the disconnect path having run: the worker must log, drop,
	// and carry on without a reply.
	ctl.registry.Remove(user.ID())
	ctl.handleCommand(user, []byte("/time"), mvCh)

	select {
	case p := <-inbox.ch:
		req.Failf("unexpected reply", "got %q", string(p))
	default:
	}
}

func TestMigrationsWorkerDeliversCatchUp(t *testing.T) {
	req := require.New(t)
	ctl, user, inbox, _ := newTestPipeline(t)

	lobby := ctl.registry.GetOrCreate("lobby")
	lobby.Append([]byte("earlier"))
	lobby.Append([]byte("chatter"))

	mvCh := make(chan string, 1)
	mvCh <- "lobby"
	close(mvCh)
	ctl.migrations(user, mvCh)

	req.Equal("earlier\nchatter", inbox.reply(t))
	req.True(user.CaughtUp())
	req.Equal(lobby.Key(), user.Room())

	key, ok := ctl.registry.RoomOf(user.ID())
	req.True(ok)
	req.Equal(lobby.Key(), key)
}

func TestRateLimiterWindow(t *testing.T) {
	req := require.New(t)
	rl := NewMessageRateLimiter(2, time.Minute)

	req.True(rl.Allow(1))
	req.True(rl.Allow(1))
	req.False(rl.Allow(1))
	req.True(rl.Allow(2), "limits are per user")

	rl.Forget(1)
	req.True(rl.Allow(1))
}
