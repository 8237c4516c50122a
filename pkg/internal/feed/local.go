package feed

import (
	"context"
	"sync"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/metrics"
	"github.com/rs/zerolog/log"
)

const subscriptionBuffer = 256

// LocalBus fans changes out to in-process subscribers.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[*Subscription]struct{})}
}

func (v *LocalBus) Publish(_ context.Context, change Change) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	for sub := range v.subs {
		if !sub.accepts(change) {
			continue
		}
		select {
		case sub.ch <- change:
		default:
			metrics.FeedDropped.Inc()
			log.Warn().
				Str("table", change.Table).
				Uint("id", change.ID).
				Msg("Subscriber is lagging behind, dropped a change notification...")
		}
	}

	return nil
}

func (v *LocalBus) Subscribe(filters ...Filter) *Subscription {
	ch := make(chan Change, subscriptionBuffer)
	sub := &Subscription{C: ch, ch: ch, filters: filters}

	var once sync.Once
	sub.cancel = func() {
		once.Do(func() {
			v.mu.Lock()
			if _, ok := v.subs[sub]; ok {
				delete(v.subs, sub)
				close(ch)
			}
			v.mu.Unlock()
		})
	}

	v.mu.Lock()
	if v.closed {
		close(ch)
	} else {
		v.subs[sub] = struct{}{}
	}
	v.mu.Unlock()

	return sub
}

func (v *LocalBus) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	for sub := range v.subs {
		close(sub.ch)
		delete(v.subs, sub)
	}
	return nil
}
