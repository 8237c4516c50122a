package feed

import (
	"context"
	"fmt"
)

type Action = string

const (
	ActionInsert = Action("insert")
	ActionUpdate = Action("update")
	ActionDelete = Action("delete")
)

// Change is a row-level notification emitted after a committed write.
// Columns carries the subset of the row subscribers filter on.
type Change struct {
	Table   string         `json:"table"`
	Action  Action         `json:"action"`
	ID      uint           `json:"id"`
	Columns map[string]any `json:"columns,omitempty"`
}

// Filter selects changes of one table, optionally narrowed by a column equality.
type Filter struct {
	Table  string
	Column string
	Value  any
}

func (f Filter) Match(change Change) bool {
	if f.Table != "" && f.Table != change.Table {
		return false
	}
	if f.Column == "" {
		return true
	}
	val, ok := change.Columns[f.Column]
	if !ok {
		return false
	}
	// Values may have been through a JSON round trip, compare the textual form.
	return fmt.Sprint(val) == fmt.Sprint(f.Value)
}

type Bus interface {
	Publish(ctx context.Context, change Change) error
	Subscribe(filters ...Filter) *Subscription
	Close() error
}

type Subscription struct {
	C <-chan Change

	filters []Filter
	ch      chan Change
	cancel  func()
}

func (v *Subscription) accepts(change Change) bool {
	if len(v.filters) == 0 {
		return true
	}
	for _, filter := range v.filters {
		if filter.Match(change) {
			return true
		}
	}
	return false
}

// Close detaches the subscription, the channel is closed afterwards.
// It is safe to call more than once.
func (v *Subscription) Close() {
	v.cancel()
}

// B is the process wide bus, set up during startup.
var B Bus = NewLocalBus()

const (
	TableChannels       = "channels"
	TableChannelMembers = "channel_members"
	TableMessages       = "messages"
	TableReactions      = "message_reactions"
	TableAttachments    = "message_attachments"
)
