package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/dispatch"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/feed"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/metrics"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/presence"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/services"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/synchronizer"
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
)

const eventBuffer = 128

// Deps are the process wide collaborators a session is built on.
// Zero values fall back to the globals set up at startup.
type Deps struct {
	Bus        feed.Bus
	Hub        *presence.Hub
	Clock      clock.Clock
	Source     synchronizer.Source
	Dispatcher *dispatch.Dispatcher
}

// Session is everything one connected user does in chat.
type Session struct {
	user       uint
	credential string
	locale     string

	dispatcher *dispatch.Dispatcher
	sync       *synchronizer.Synchronizer
	typist     *presence.Typist
	typing     *presence.TypingState

	mu       sync.Mutex
	active   uint
	closed   bool
	events   chan Event
	pumpDone chan struct{}
}

func NewSession(user uint, credential, locale string, deps Deps) (*Session, error) {
	if user == 0 {
		return nil, services.ErrUnauthenticated
	}
	if deps.Bus == nil {
		deps.Bus = feed.B
	}
	if deps.Hub == nil {
		deps.Hub = presence.H
	}
	if deps.Source == nil {
		deps.Source = synchronizer.StoreSource{}
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = dispatch.D
	}

	v := &Session{
		user:       user,
		credential: credential,
		locale:     locale,
		dispatcher: deps.Dispatcher,
		typist:     presence.NewTypist(deps.Hub, deps.Clock, user),
		typing:     presence.NewTypingState(),
		events:     make(chan Event, eventBuffer),
	}
	v.sync = synchronizer.New(deps.Bus, deps.Source, func(channelId uint, messages []models.MessageView) {
		v.emit(Event{Kind: EventMessagesSync, ChannelID: channelId, Messages: messages})
	})

	metrics.ActiveSessions.Inc()
	return v, nil
}

func (v *Session) UserID() uint {
	return v.user
}

// Events streams sync, typing and notice events. It is closed by Close.
func (v *Session) Events() <-chan Event {
	return v.events
}

func (v *Session) Active() uint {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.active
}

// Messages is the synchronized sequence of the active channel.
func (v *Session) Messages() []models.MessageView {
	return v.sync.Snapshot()
}

func (v *Session) emit(event Event) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	select {
	case v.events <- event:
	default:
		log.Warn().Uint("user", v.user).Str("kind", event.Kind).Msg("Session event buffer is full, dropped an event...")
	}
}

// fail turns the error into a notice and hands it back.
func (v *Session) fail(op Operation, err error) error {
	v.emit(Event{
		Kind:      EventNotice,
		ChannelID: v.Active(),
		Notice:    &Notice{Operation: op, Message: err.Error(), Err: err},
	})
	return err
}

func (v *Session) requireActive(op Operation) (uint, error) {
	channelId := v.Active()
	if channelId == 0 {
		return 0, v.fail(op, fmt.Errorf("%w: no channel selected", services.ErrInvalid))
	}
	return channelId, nil
}

func (v *Session) ListChannels(ctx context.Context) ([]models.ChannelView, error) {
	return services.ListChannel(ctx, v.user)
}

// SelectChannel makes the channel active. The realtime subscription and
// typing handle of the previous channel are torn down first.
func (v *Session) SelectChannel(ctx context.Context, channelId uint) (models.ChannelView, error) {
	view, err := services.SelectChannel(ctx, channelId, v.user)
	if err != nil {
		return view, v.fail(OpJoin, err)
	}

	v.sync.Close()
	v.switchTyping(channelId)

	if _, err := v.sync.Switch(ctx, channelId, services.DefaultPageSize); err != nil {
		// Nothing follows the channel anymore, leave no channel active
		v.typist.Close()
		v.mu.Lock()
		v.active = 0
		v.mu.Unlock()
		return view, v.fail(OpJoin, err)
	}

	v.mu.Lock()
	v.active = channelId
	v.mu.Unlock()
	services.MarkRead(channelId, v.user, time.Now())

	return view, nil
}

func (v *Session) switchTyping(channelId uint) {
	handle := v.typist.Open(channelId)

	v.mu.Lock()
	prev := v.pumpDone
	done := make(chan struct{})
	v.pumpDone = done
	v.mu.Unlock()

	// Opening the new handle closed the old one, its pump is on the way out.
	if prev != nil {
		<-prev
	}
	v.typing.Reset()

	go func() {
		defer close(done)
		for signal := range handle.Signals() {
			if v.typing.Apply(signal) {
				v.emit(Event{Kind: EventTyping, ChannelID: signal.ChannelID, Typing: v.typing.Typing()})
			}
		}
	}()
}

func (v *Session) CreateChannel(ctx context.Context, req services.CreateChannelRequest) (models.Channel, error) {
	channel, err := services.CreateChannel(ctx, v.user, req)
	if err != nil {
		return channel, v.fail(OpCreateChannel, err)
	}
	return channel, nil
}

// afterSend echoes the message into the local sequence.
func (v *Session) afterSend(ctx context.Context, message models.Message) {
	v.typist.Stop()

	view := models.MessageView{Message: message}
	if profile, err := services.GetProfile(ctx, message.SenderID); err == nil {
		view.Sender = &profile
	}
	v.sync.Echo(view)
}

func (v *Session) Send(ctx context.Context, content string, metadata map[string]any) (models.Message, error) {
	channelId, err := v.requireActive(OpSend)
	if err != nil {
		return models.Message{}, err
	}

	message, err := services.SendMessage(ctx, v.user, services.SendRequest{
		ChannelID: channelId,
		Content:   content,
		Type:      models.MessageTypeText,
		Metadata:  metadata,
	})
	if err != nil {
		return message, v.fail(OpSend, err)
	}
	v.afterSend(ctx, message)
	return message, nil
}

func (v *Session) Reply(ctx context.Context, parentId uint, content string) (models.Message, error) {
	message, err := services.ReplyMessage(ctx, v.user, parentId, content)
	if err != nil {
		return message, v.fail(OpReply, err)
	}
	v.typist.Stop()
	return message, nil
}

func (v *Session) LoadThread(ctx context.Context, parentId uint) ([]models.MessageView, error) {
	replies, err := services.LoadThreadAs(ctx, v.user, parentId)
	if err != nil {
		return nil, v.fail(OpThread, err)
	}
	return replies, nil
}

func (v *Session) SendWithAttachment(ctx context.Context, content string, file services.FileUpload) (models.Message, error) {
	channelId, err := v.requireActive(OpAttachment)
	if err != nil {
		return models.Message{}, err
	}
	message, err := services.SendWithAttachment(ctx, v.user, channelId, content, file)
	if err != nil {
		return message, v.fail(OpAttachment, err)
	}
	v.afterSend(ctx, message)
	return message, nil
}

func (v *Session) SendVoice(ctx context.Context, audio services.FileUpload, duration float64) (models.Message, error) {
	channelId, err := v.requireActive(OpVoice)
	if err != nil {
		return models.Message{}, err
	}
	message, err := services.SendVoice(ctx, v.user, channelId, audio, duration)
	if err != nil {
		return message, v.fail(OpVoice, err)
	}
	v.afterSend(ctx, message)
	return message, nil
}

func (v *Session) Edit(ctx context.Context, messageId uint, content string) (models.Message, error) {
	message, err := services.EditMessage(ctx, v.user, messageId, content)
	if err != nil {
		return message, v.fail(OpEdit, err)
	}
	return message, nil
}

func (v *Session) Delete(ctx context.Context, messageId uint) error {
	if _, err := services.DeleteMessage(ctx, v.user, messageId); err != nil {
		return v.fail(OpDelete, err)
	}
	return nil
}

// React toggles the reaction and reports whether it is now present.
func (v *Session) React(ctx context.Context, messageId uint, symbol string) (bool, error) {
	reacted, err := services.ToggleReaction(ctx, v.user, messageId, symbol)
	if err != nil {
		return false, v.fail(OpReact, err)
	}
	return reacted, nil
}

// Typing reports local input, failures never reach the caller.
func (v *Session) Typing() {
	if v.Active() == 0 {
		return
	}
	v.typist.Activity()
}

func (v *Session) Dispatch(ctx context.Context, raw string) (dispatch.CommandResult, error) {
	if v.dispatcher == nil {
		return dispatch.CommandResult{}, v.fail(OpCommand, dispatch.ErrNotConfigured)
	}
	result, err := v.dispatcher.DispatchSlashCommand(ctx, v.credential, v.user, v.Active(), raw, v.locale)
	if err != nil {
		return result, v.fail(OpCommand, err)
	}
	return result, nil
}

func (v *Session) SubmitCard(ctx context.Context, cardId string, formData map[string]any) (dispatch.SubmissionResult, error) {
	if v.dispatcher == nil {
		return dispatch.SubmissionResult{}, v.fail(OpCard, dispatch.ErrNotConfigured)
	}
	result, err := v.dispatcher.SubmitCard(ctx, v.credential, v.user, cardId, formData)
	if err != nil {
		return result, v.fail(OpCard, err)
	}
	return result, nil
}

// DetectIntent is advisory, nil means nothing was detected.
func (v *Session) DetectIntent(ctx context.Context, text string) map[string]any {
	return v.dispatcher.DetectIntent(ctx, v.credential, text, v.locale)
}

// Close releases the subscription, the typing handle and its timer.
// Events is closed once nothing can emit anymore.
func (v *Session) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	done := v.pumpDone
	v.pumpDone = nil
	v.active = 0
	v.mu.Unlock()

	v.sync.Close()
	v.typist.Close()
	if done != nil {
		<-done
	}

	v.mu.Lock()
	close(v.events)
	v.mu.Unlock()

	metrics.ActiveSessions.Dec()
}
