package presence

import (
	"sync"

	"github.com/samber/lo"
)

// TypingState folds counterpart signals, last write wins per user.
type TypingState struct {
	mu    sync.Mutex
	users map[uint]Signal
}

func NewTypingState() *TypingState {
	return &TypingState{users: make(map[uint]Signal)}
}

// Apply records the signal and reports whether the visible state changed.
func (v *TypingState) Apply(signal Signal) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	prev, ok := v.users[signal.UserID]
	if ok && signal.At.Before(prev.At) {
		return false
	}
	v.users[signal.UserID] = signal
	return !ok || prev.Typing != signal.Typing
}

// Typing lists the users currently typing.
func (v *TypingState) Typing() []uint {
	v.mu.Lock()
	defer v.mu.Unlock()

	return lo.FilterMap(lo.Values(v.users), func(item Signal, index int) (uint, bool) {
		return item.UserID, item.Typing
	})
}

func (v *TypingState) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.users = make(map[uint]Signal)
}
