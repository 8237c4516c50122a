package models

import (
	"time"
)

type ChannelKind = string

const (
	ChannelKindDirect  = ChannelKind("direct")
	ChannelKindGroup   = ChannelKind("group")
	ChannelKindPublic  = ChannelKind("public")
	ChannelKindPrivate = ChannelKind("private")
)

type Channel struct {
	BaseModel

	Name        string          `json:"name"`
	Description string          `json:"description"`
	Kind        ChannelKind     `json:"kind" gorm:"index"`
	IsPublic    bool            `json:"is_public"`
	IsPrivate   bool            `json:"is_private"`
	CreatedBy   uint            `json:"created_by"`
	Members     []ChannelMember `json:"members,omitempty"`
}

type MemberRole = string

const (
	MemberRoleOwner  = MemberRole("owner")
	MemberRoleMember = MemberRole("member")
)

type NotifyLevel = int8

const (
	NotifyLevelAll = NotifyLevel(iota)
	NotifyLevelMentioned
	NotifyLevelNone
)

// ChannelMember rows are hard deleted so a user may rejoin after leaving,
// the (channel_id, account_id) pair is unique.
type ChannelMember struct {
	ID         uint        `json:"id" gorm:"primaryKey"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	ChannelID  uint        `json:"channel_id" gorm:"uniqueIndex:idx_channel_member"`
	AccountID  uint        `json:"account_id" gorm:"uniqueIndex:idx_channel_member"`
	Role       MemberRole  `json:"role"`
	Notify     NotifyLevel `json:"notify"`
	LastReadAt *time.Time  `json:"last_read_at"`
	Account    *Profile    `json:"account,omitempty" gorm:"foreignKey:AccountID"`
}

type DisplayInfo struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// ChannelView is what a caller sees for a channel.
// Display is derived at read time and never persisted.
type ChannelView struct {
	Channel
	Display    DisplayInfo    `json:"display"`
	Membership *ChannelMember `json:"membership,omitempty"`
}
