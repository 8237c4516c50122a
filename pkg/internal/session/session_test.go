package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/dispatch"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/feed"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/presence"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/services"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/testutil"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	bus   *feed.LocalBus
	hub   *presence.Hub
	clock *clock.Mock
	room  models.Channel
	other models.Channel
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := testutil.SetupDatabase(t)
	bus := testutil.SetupFeed(t)
	testutil.SeedProfiles(t, db, 1, 2, 3)

	ctx := context.Background()
	room, err := services.CreateChannel(ctx, 1, services.CreateChannelRequest{
		Name:      "general",
		Kind:      models.ChannelKindPublic,
		MemberIDs: []uint{2},
	})
	require.NoError(t, err)
	other, err := services.CreateChannel(ctx, 1, services.CreateChannelRequest{
		Name: "random",
		Kind: models.ChannelKindPublic,
	})
	require.NoError(t, err)

	return fixture{bus: bus, hub: presence.NewHub(), clock: clock.NewMock(), room: room, other: other}
}

func (f fixture) open(t *testing.T, user uint) *Session {
	t.Helper()
	s, err := NewSession(user, "", "en-US", Deps{Bus: f.bus, Hub: f.hub, Clock: f.clock})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func waitEvent(t *testing.T, s *Session, match func(Event) bool) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case event, ok := <-s.Events():
			require.True(t, ok, "events closed while waiting")
			if match(event) {
				return event
			}
		case <-timeout:
			t.Fatal("expected event never arrived")
			return Event{}
		}
	}
}

func TestNewSessionRequiresUser(t *testing.T) {
	_, err := NewSession(0, "", "", Deps{})
	assert.ErrorIs(t, err, services.ErrUnauthenticated)
}

func TestSendEchoesOnce(t *testing.T) {
	f := setup(t)
	alice := f.open(t, 1)
	ctx := context.Background()

	_, err := alice.SelectChannel(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, f.room.ID, alice.Active())

	message, err := alice.Send(ctx, "hello", nil)
	require.NoError(t, err)

	messages := alice.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, message.ID, messages[0].ID)
	require.NotNil(t, messages[0].Sender)
	assert.Equal(t, "user1", messages[0].Sender.Name)

	// The change notification for the same row must not add a duplicate
	assert.Never(t, func() bool {
		return len(alice.Messages()) != 1
	}, 200*time.Millisecond, 20*time.Millisecond)
}

func TestOtherSessionFollowsChannel(t *testing.T) {
	f := setup(t)
	alice := f.open(t, 1)
	bob := f.open(t, 2)
	ctx := context.Background()

	_, err := alice.SelectChannel(ctx, f.room.ID)
	require.NoError(t, err)
	_, err = bob.SelectChannel(ctx, f.room.ID)
	require.NoError(t, err)

	_, err = alice.Send(ctx, "hi bob", nil)
	require.NoError(t, err)

	event := waitEvent(t, bob, func(event Event) bool {
		return event.Kind == EventMessagesSync && len(event.Messages) == 1
	})
	assert.Equal(t, f.room.ID, event.ChannelID)
	assert.Equal(t, "hi bob", event.Messages[0].Content)

	reacted, err := bob.React(ctx, event.Messages[0].ID, "👍")
	require.NoError(t, err)
	assert.True(t, reacted)
}

func TestSelectChannelSwitches(t *testing.T) {
	f := setup(t)
	alice := f.open(t, 1)
	bob := f.open(t, 2)
	ctx := context.Background()

	_, err := bob.SelectChannel(ctx, f.room.ID)
	require.NoError(t, err)
	_, err = bob.Send(ctx, "first", nil)
	require.NoError(t, err)
	require.Len(t, bob.Messages(), 1)

	_, err = bob.SelectChannel(ctx, f.other.ID)
	require.NoError(t, err)
	assert.Equal(t, f.other.ID, bob.Active())
	assert.Empty(t, bob.Messages())

	_, err = alice.SelectChannel(ctx, f.room.ID)
	require.NoError(t, err)
	_, err = alice.Send(ctx, "bob has left", nil)
	require.NoError(t, err)

	assert.Never(t, func() bool {
		return len(bob.Messages()) != 0
	}, 200*time.Millisecond, 20*time.Millisecond)
}

func TestFailuresBecomeNotices(t *testing.T) {
	f := setup(t)
	alice := f.open(t, 1)
	ctx := context.Background()

	_, err := alice.Send(ctx, "nowhere", nil)
	assert.ErrorIs(t, err, services.ErrInvalid)
	event := waitEvent(t, alice, func(event Event) bool { return event.Kind == EventNotice })
	assert.Equal(t, OpSend, event.Notice.Operation)

	_, err = alice.SelectChannel(ctx, 404)
	assert.ErrorIs(t, err, services.ErrNotFound)
	event = waitEvent(t, alice, func(event Event) bool { return event.Kind == EventNotice })
	assert.Equal(t, OpJoin, event.Notice.Operation)

	_, err = alice.Dispatch(ctx, "/weather")
	assert.ErrorIs(t, err, dispatch.ErrNotConfigured)
	event = waitEvent(t, alice, func(event Event) bool { return event.Kind == EventNotice })
	assert.Equal(t, OpCommand, event.Notice.Operation)

	assert.Nil(t, alice.DetectIntent(ctx, "meet at ten"))
}

func TestTypingReachesOtherMembers(t *testing.T) {
	f := setup(t)
	alice := f.open(t, 1)
	bob := f.open(t, 2)
	ctx := context.Background()

	_, err := alice.SelectChannel(ctx, f.room.ID)
	require.NoError(t, err)
	_, err = bob.SelectChannel(ctx, f.room.ID)
	require.NoError(t, err)

	alice.Typing()
	event := waitEvent(t, bob, func(event Event) bool { return event.Kind == EventTyping })
	assert.Equal(t, []uint{1}, event.Typing)

	f.clock.Add(presence.InactivityTimeout)
	event = waitEvent(t, bob, func(event Event) bool { return event.Kind == EventTyping })
	assert.Empty(t, event.Typing)
}

func TestSendClearsTyping(t *testing.T) {
	f := setup(t)
	alice := f.open(t, 1)
	bob := f.open(t, 2)
	ctx := context.Background()

	_, err := alice.SelectChannel(ctx, f.room.ID)
	require.NoError(t, err)
	_, err = bob.SelectChannel(ctx, f.room.ID)
	require.NoError(t, err)

	alice.Typing()
	waitEvent(t, bob, func(event Event) bool { return event.Kind == EventTyping && len(event.Typing) == 1 })

	_, err = alice.Send(ctx, "done typing", nil)
	require.NoError(t, err)
	waitEvent(t, bob, func(event Event) bool { return event.Kind == EventTyping && len(event.Typing) == 0 })
}

func TestCloseEndsEvents(t *testing.T) {
	f := setup(t)
	alice := f.open(t, 1)
	_, err := alice.SelectChannel(context.Background(), f.room.ID)
	require.NoError(t, err)

	alice.Close()
	alice.Close()
	assert.Zero(t, alice.Active())

	for range alice.Events() {
	}
	assert.Zero(t, f.hub.Count(f.room.ID))
}

type brokenSource struct{}

func (brokenSource) LoadMessages(context.Context, uint, int) ([]models.MessageView, error) {
	return nil, errors.New("store offline")
}

func (brokenSource) GetMessageView(context.Context, uint) (models.MessageView, error) {
	return models.MessageView{}, errors.New("store offline")
}

func TestSelectChannelFailureLeavesNoActiveChannel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	s, err := NewSession(1, "", "en-US", Deps{Bus: f.bus, Hub: f.hub, Clock: f.clock, Source: brokenSource{}})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	_, err = s.SelectChannel(ctx, f.room.ID)
	require.Error(t, err)
	event := waitEvent(t, s, func(event Event) bool { return event.Kind == EventNotice })
	assert.Equal(t, OpJoin, event.Notice.Operation)

	assert.Zero(t, s.Active())
	assert.Zero(t, f.hub.Count(f.room.ID))

	_, err = s.Send(ctx, "nowhere to go", nil)
	assert.ErrorIs(t, err, services.ErrInvalid)
}

func TestLoadThreadRequiresReadAccess(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	secret, err := services.CreateChannel(ctx, 1, services.CreateChannelRequest{
		Name:      "inner circle",
		Kind:      models.ChannelKindPrivate,
		MemberIDs: []uint{2},
	})
	require.NoError(t, err)
	root, err := services.SendMessage(ctx, 1, services.SendRequest{ChannelID: secret.ID, Content: "plans"})
	require.NoError(t, err)
	_, err = services.ReplyMessage(ctx, 2, root.ID, "hidden reply")
	require.NoError(t, err)

	outsider := f.open(t, 3)
	replies, err := outsider.LoadThread(ctx, root.ID)
	assert.ErrorIs(t, err, services.ErrForbidden)
	assert.Empty(t, replies)
	event := waitEvent(t, outsider, func(event Event) bool { return event.Kind == EventNotice })
	assert.Equal(t, OpThread, event.Notice.Operation)

	member := f.open(t, 2)
	replies, err = member.LoadThread(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "hidden reply", replies[0].Content)

	_, err = member.LoadThread(ctx, 404)
	assert.ErrorIs(t, err, services.ErrNotFound)
}
