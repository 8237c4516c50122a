package presence

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
)

const (
	BroadcastWindow   = 2 * time.Second
	InactivityTimeout = 3 * time.Second
)

// Typist drives the idle -> typing -> idle state of one user in the
// channel that is currently open. Broadcasts are leading-edge limited to
// one per BroadcastWindow and typing is cleared after InactivityTimeout.
type Typist struct {
	hub    *Hub
	clock  clock.Clock
	userId uint

	mu         sync.Mutex
	handle     *Handle
	timer      *clock.Timer
	generation uint64
	typing     bool
	lastSent   time.Time
}

func NewTypist(hub *Hub, clk clock.Clock, userId uint) *Typist {
	if clk == nil {
		clk = clock.New()
	}
	return &Typist{hub: hub, clock: clk, userId: userId}
}

// Open joins the channel and returns the handle signals are read from.
// The handle and timer of the previously opened channel are released.
func (v *Typist) Open(channelId uint) *Handle {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.releaseLocked()
	v.handle = v.hub.Join(channelId, v.userId)
	return v.handle
}

// Activity reports local input.
func (v *Typist) Activity() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.handle == nil {
		return
	}

	now := v.clock.Now()
	if !v.typing || v.lastSent.IsZero() || now.Sub(v.lastSent) >= BroadcastWindow {
		v.send(true, now)
		v.lastSent = now
	}
	v.typing = true

	if v.timer != nil {
		v.timer.Stop()
	}
	v.generation++
	generation := v.generation
	v.timer = v.clock.AfterFunc(InactivityTimeout, func() {
		v.expire(generation)
	})
}

// Stop clears the typing flag right away, e.g. after the message was sent.
func (v *Typist) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.handle == nil || !v.typing {
		return
	}
	v.cancelTimerLocked()
	v.typing = false
	v.lastSent = time.Time{}
	v.send(false, v.clock.Now())
}

func (v *Typist) Typing() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.typing
}

func (v *Typist) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.releaseLocked()
}

func (v *Typist) expire(generation uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	// Stale timer from an earlier activity or an already closed channel
	if generation != v.generation || v.handle == nil || !v.typing {
		return
	}
	v.timer = nil
	v.typing = false
	v.lastSent = time.Time{}
	v.send(false, v.clock.Now())
}

func (v *Typist) send(typing bool, at time.Time) {
	if err := v.handle.Broadcast(typing, at); err != nil {
		log.Warn().Err(err).Uint("channel", v.handle.ChannelID()).Msg("An error occurred when broadcasting typing status...")
	}
}

func (v *Typist) cancelTimerLocked() {
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	v.generation++
}

func (v *Typist) releaseLocked() {
	v.cancelTimerLocked()
	if v.handle != nil {
		v.handle.Close()
		v.handle = nil
	}
	v.typing = false
	v.lastSent = time.Time{}
}
