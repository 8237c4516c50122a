package models

import "time"

type ChatNotification struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time  `json:"created_at"`
	AccountID uint       `json:"account_id" gorm:"index"`
	ChannelID uint       `json:"channel_id"`
	MessageID uint       `json:"message_id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"read_at"`
}
