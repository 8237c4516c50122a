package presence

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrHandleClosed = errors.New("typing handle was closed")

const signalBuffer = 64

// Signal is one typing broadcast, it is never stored.
type Signal struct {
	ChannelID uint      `json:"channel_id"`
	UserID    uint      `json:"user_id"`
	Typing    bool      `json:"typing"`
	At        time.Time `json:"at"`
}

// Hub is an in-memory broadcaster keyed by channel id.
type Hub struct {
	mu       sync.RWMutex
	channels map[uint]map[*Handle]struct{}
}

func NewHub() *Hub {
	return &Hub{channels: make(map[uint]map[*Handle]struct{})}
}

// H is shared by every session of this process.
var H = NewHub()

// Handle is the subscription of one session to one channel.
// It is used both to broadcast and to receive counterpart signals.
type Handle struct {
	hub       *Hub
	channelId uint
	userId    uint
	ch        chan Signal
	once      sync.Once
	closed    bool
}

func (v *Hub) Join(channelId, userId uint) *Handle {
	handle := &Handle{
		hub:       v,
		channelId: channelId,
		userId:    userId,
		ch:        make(chan Signal, signalBuffer),
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.channels[channelId]; !ok {
		v.channels[channelId] = make(map[*Handle]struct{})
	}
	v.channels[channelId][handle] = struct{}{}
	return handle
}

// Count returns how many handles are open in a channel.
func (v *Hub) Count(channelId uint) int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.channels[channelId])
}

func (v *Hub) broadcast(from *Handle, signal Signal) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if from.closed {
		return ErrHandleClosed
	}
	for handle := range v.channels[from.channelId] {
		if handle == from || handle.userId == from.userId {
			continue
		}
		select {
		case handle.ch <- signal:
		default:
			log.Debug().Uint("channel", from.channelId).Msg("Dropped typing signal for a lagging subscriber...")
		}
	}
	return nil
}

func (v *Handle) ChannelID() uint {
	return v.channelId
}

// Signals streams typing signals of the other users in the channel.
// The channel is closed once the handle is closed.
func (v *Handle) Signals() <-chan Signal {
	return v.ch
}

func (v *Handle) Broadcast(typing bool, at time.Time) error {
	return v.hub.broadcast(v, Signal{
		ChannelID: v.channelId,
		UserID:    v.userId,
		Typing:    typing,
		At:        at,
	})
}

func (v *Handle) Close() {
	v.once.Do(func() {
		v.hub.mu.Lock()
		defer v.hub.mu.Unlock()

		v.closed = true
		if handles, ok := v.hub.channels[v.channelId]; ok {
			delete(handles, v)
			if len(handles) == 0 {
				delete(v.hub.channels, v.channelId)
			}
		}
		close(v.ch)
	})
}
