package synchronizer

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/feed"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Synchronizer keeps the ordered message sequence of the active channel in
// step with the change feed. Only root messages are kept, replies show up
// as the thread count of their root.
type Synchronizer struct {
	bus      feed.Bus
	source   Source
	onUpdate func(channelId uint, messages []models.MessageView)

	mu         sync.Mutex
	channelId  uint
	generation uint64
	messages   []models.MessageView
	sub        *feed.Subscription
	cancel     context.CancelFunc
	done       chan struct{}
}

func New(bus feed.Bus, source Source, onUpdate func(channelId uint, messages []models.MessageView)) *Synchronizer {
	return &Synchronizer{bus: bus, source: source, onUpdate: onUpdate}
}

// Switch disposes the subscription of the previous channel, subscribes to
// the new one and loads its latest page.
func (v *Synchronizer) Switch(ctx context.Context, channelId uint, limit int) ([]models.MessageView, error) {
	v.Close()

	// Subscribe before loading, anything racing the load is de-duplicated.
	sub := v.bus.Subscribe(feed.Filter{
		Table:  feed.TableMessages,
		Column: "channel_id",
		Value:  channelId,
	})
	initial, err := v.source.LoadMessages(ctx, channelId, limit)
	if err != nil {
		sub.Close()
		return nil, fmt.Errorf("unable to load messages: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	v.mu.Lock()
	v.generation++
	generation := v.generation
	v.channelId = channelId
	v.messages = slices.Clone(initial)
	v.sub = sub
	v.cancel = cancel
	v.done = done
	v.mu.Unlock()

	go func() {
		defer close(done)
		for change := range sub.C {
			if err := v.apply(loopCtx, generation, change); err != nil {
				log.Warn().Err(err).
					Uint("channel", channelId).
					Uint("message", change.ID).
					Msg("An error occurred when applying message change...")
			}
		}
	}()

	v.notify()
	return v.Snapshot(), nil
}

// Close stops following the current channel. Once it returns no handler
// of that channel is running anymore.
func (v *Synchronizer) Close() {
	v.mu.Lock()
	sub, cancel, done := v.sub, v.cancel, v.done
	v.sub, v.cancel, v.done = nil, nil, nil
	v.generation++
	v.channelId = 0
	v.messages = nil
	v.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		sub.Close()
	}
	if done != nil {
		<-done
	}
}

func (v *Synchronizer) ChannelID() uint {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.channelId
}

func (v *Synchronizer) Snapshot() []models.MessageView {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.messages)
}

// Echo appends a locally sent message before its insert notification
// arrives. Whichever of the two comes second is dropped.
func (v *Synchronizer) Echo(message models.MessageView) bool {
	v.mu.Lock()
	if message.ChannelID != v.channelId || message.ParentMessageID != nil || v.indexLocked(message.ID) >= 0 {
		v.mu.Unlock()
		return false
	}
	v.messages = append(v.messages, message)
	v.mu.Unlock()

	v.notify()
	return true
}

// Apply merges one change of the active channel.
func (v *Synchronizer) Apply(ctx context.Context, change feed.Change) error {
	v.mu.Lock()
	generation := v.generation
	v.mu.Unlock()
	return v.apply(ctx, generation, change)
}

func (v *Synchronizer) apply(ctx context.Context, generation uint64, change feed.Change) error {
	if change.Table != feed.TableMessages {
		return nil
	}
	if !v.current(generation, change) {
		return nil
	}

	if parentId, ok := parentOf(change); ok {
		return v.refresh(ctx, generation, parentId)
	}

	switch change.Action {
	case feed.ActionInsert:
		v.mu.Lock()
		exists := v.indexLocked(change.ID) >= 0
		v.mu.Unlock()
		if exists {
			return nil
		}
		view, err := v.source.GetMessageView(ctx, change.ID)
		if err != nil {
			return err
		}
		v.mu.Lock()
		if generation != v.generation || v.indexLocked(view.ID) >= 0 {
			v.mu.Unlock()
			return nil
		}
		v.messages = append(v.messages, view)
		v.mu.Unlock()
	case feed.ActionUpdate:
		return v.refresh(ctx, generation, change.ID)
	case feed.ActionDelete:
		v.mu.Lock()
		idx := v.indexLocked(change.ID)
		if idx < 0 {
			v.mu.Unlock()
			return nil
		}
		v.messages = slices.Delete(v.messages, idx, idx+1)
		v.mu.Unlock()
	default:
		return nil
	}

	v.notify()
	return nil
}

// refresh fetches the record again and replaces the entry in place.
func (v *Synchronizer) refresh(ctx context.Context, generation uint64, id uint) error {
	v.mu.Lock()
	exists := v.indexLocked(id) >= 0
	v.mu.Unlock()
	if !exists {
		return nil
	}

	view, err := v.source.GetMessageView(ctx, id)
	if err != nil {
		return err
	}

	v.mu.Lock()
	idx := v.indexLocked(id)
	if generation != v.generation || idx < 0 {
		v.mu.Unlock()
		return nil
	}
	v.messages[idx] = view
	v.mu.Unlock()

	v.notify()
	return nil
}

func (v *Synchronizer) current(generation uint64, change feed.Change) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if generation != v.generation || v.channelId == 0 {
		return false
	}
	if channelId, ok := change.Columns["channel_id"]; ok {
		return fmt.Sprint(channelId) == strconv.FormatUint(uint64(v.channelId), 10)
	}
	return true
}

func (v *Synchronizer) indexLocked(id uint) int {
	_, idx, ok := lo.FindIndexOf(v.messages, func(item models.MessageView) bool {
		return item.ID == id
	})
	if !ok {
		return -1
	}
	return idx
}

func (v *Synchronizer) notify() {
	if v.onUpdate == nil {
		return
	}
	v.mu.Lock()
	channelId := v.channelId
	messages := slices.Clone(v.messages)
	v.mu.Unlock()
	if channelId == 0 {
		return
	}
	v.onUpdate(channelId, messages)
}

func parentOf(change feed.Change) (uint, bool) {
	raw, ok := change.Columns["parent_message_id"]
	if !ok || raw == nil {
		return 0, false
	}
	id, err := strconv.ParseUint(fmt.Sprint(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
