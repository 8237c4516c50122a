package models

import (
	"time"

	"gorm.io/datatypes"
)

type MessageType = string

const (
	MessageTypeText  = MessageType("text")
	MessageTypeFile  = MessageType("file")
	MessageTypeVoice = MessageType("voice")
)

type Message struct {
	BaseModel

	ChannelID       uint                `json:"channel_id" gorm:"index"`
	SenderID        uint                `json:"sender_id"`
	Content         string              `json:"content"`
	Type            MessageType         `json:"type"`
	ParentMessageID *uint               `json:"parent_message_id" gorm:"index"`
	Metadata        datatypes.JSONMap   `json:"metadata"`
	IsEdited        bool                `json:"is_edited"`
	Reactions       []MessageReaction   `json:"reactions"`
	Attachments     []MessageAttachment `json:"attachments"`
	Voice           *VoiceMessage       `json:"voice,omitempty"`
}

type MessageReaction struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	MessageID uint      `json:"message_id" gorm:"uniqueIndex:idx_message_reaction"`
	AccountID uint      `json:"account_id" gorm:"uniqueIndex:idx_message_reaction"`
	Symbol    string    `json:"symbol" gorm:"uniqueIndex:idx_message_reaction"`
}

type MessageAttachment struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	MessageID  uint      `json:"message_id" gorm:"index"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	ByteSize   int64     `json:"byte_size"`
	StorageRef string    `json:"storage_ref"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type VoiceMessage struct {
	ID              uint    `json:"id" gorm:"primaryKey"`
	MessageID       uint    `json:"message_id" gorm:"uniqueIndex"`
	DurationSeconds float64 `json:"duration_seconds"`
	StorageRef      string  `json:"storage_ref"`
}

// MessageView is a message with its read-time projections resolved.
type MessageView struct {
	Message
	Sender      *Profile `json:"sender"`
	ThreadCount int64    `json:"thread_count"`
}

type ReactionGroup struct {
	Symbol   string `json:"symbol"`
	Count    int    `json:"count"`
	Accounts []uint `json:"accounts"`
}
