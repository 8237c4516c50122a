package session

import "git.solsynth.dev/hypernet/chatcore/pkg/internal/models"

type EventKind = string

const (
	EventMessagesSync = EventKind("messages.sync")
	EventTyping       = EventKind("status.typing")
	EventNotice       = EventKind("notice")
)

type Operation = string

const (
	OpJoin          = Operation("join")
	OpCreateChannel = Operation("create_channel")
	OpSend          = Operation("send")
	OpReply         = Operation("reply")
	OpThread        = Operation("thread")
	OpAttachment    = Operation("send_attachment")
	OpVoice         = Operation("send_voice")
	OpEdit          = Operation("edit")
	OpDelete        = Operation("delete")
	OpReact         = Operation("react")
	OpCommand       = Operation("command")
	OpCard          = Operation("card")
)

// Notice tells the user a write did not go through.
type Notice struct {
	Operation Operation `json:"operation"`
	Message   string    `json:"message"`
	Err       error     `json:"-"`
}

type Event struct {
	Kind      EventKind            `json:"kind"`
	ChannelID uint                 `json:"channel_id,omitempty"`
	Messages  []models.MessageView `json:"messages,omitempty"`
	Typing    []uint               `json:"typing,omitempty"`
	Notice    *Notice              `json:"notice,omitempty"`
}
