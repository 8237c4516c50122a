package services

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/database"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/queue"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// mentionedUsers reads metadata.related_users, tolerating JSON numbers.
func mentionedUsers(message models.Message) []uint {
	raw, ok := message.Metadata["related_users"].([]any)
	if !ok {
		if typed, ok := message.Metadata["related_users"].([]uint); ok {
			return typed
		}
		return nil
	}
	var out []uint
	for _, item := range raw {
		switch val := item.(type) {
		case float64:
			if val >= 1 && val == math.Trunc(val) {
				out = append(out, uint(val))
			}
		case int:
			if val > 0 {
				out = append(out, uint(val))
			}
		case uint:
			out = append(out, val)
		case string:
			if id, err := strconv.ParseUint(val, 10, 64); err == nil && id > 0 {
				out = append(out, uint(id))
			}
		}
	}
	return out
}

func messageDisplayText(message models.Message) string {
	switch message.Type {
	case models.MessageTypeVoice:
		return "Voice message"
	case models.MessageTypeFile:
		if len(message.Content) > 0 {
			return message.Content
		}
		return fmt.Sprintf("%d attachment(s)", lo.Max([]int{len(message.Attachments), 1}))
	default:
		return message.Content
	}
}

// NotifyMessage records a chat notification for every member who wants one
// and hands them to the queue when it is enabled.
func NotifyMessage(ctx context.Context, message models.Message) error {
	var members []models.ChannelMember
	if err := database.C.WithContext(ctx).
		Where("channel_id = ? AND account_id <> ?", message.ChannelID, message.SenderID).
		Find(&members).Error; err != nil {
		return fmt.Errorf("unable to get channel members: %w", err)
	}

	mentioned := mentionedUsers(message)
	pending := lo.Filter(members, func(item models.ChannelMember, index int) bool {
		switch item.Notify {
		case models.NotifyLevelNone:
			return false
		case models.NotifyLevelMentioned:
			return lo.Contains(mentioned, item.AccountID)
		default:
			return true
		}
	})
	if len(pending) == 0 {
		return nil
	}

	channel, err := GetChannel(ctx, message.ChannelID)
	if err != nil {
		return err
	}
	sender, err := GetProfile(ctx, message.SenderID)
	if err != nil {
		sender = models.Profile{ID: message.SenderID, Name: fmt.Sprintf("#%d", message.SenderID)}
	}

	where := channel.Name
	if channel.Kind == models.ChannelKindDirect {
		where = "DM"
	}

	notifications := lo.Map(pending, func(item models.ChannelMember, index int) models.ChatNotification {
		return models.ChatNotification{
			AccountID: item.AccountID,
			ChannelID: message.ChannelID,
			MessageID: message.ID,
			Title:     fmt.Sprintf("%s in %s", sender.DisplayName(), where),
			Body:      messageDisplayText(message),
		}
	})
	if err := database.C.WithContext(ctx).Create(&notifications).Error; err != nil {
		return fmt.Errorf("unable to save notifications: %w", err)
	}

	if queue.W != nil {
		for _, notification := range notifications {
			payload := map[string]any{"notification": notification}
			if tk, err := CreateReplyToken(message.ID, notification.AccountID); err == nil {
				payload["reply_token"] = tk
			}
			raw, _ := jsoniter.Marshal(payload)
			if err := queue.W.Publish(ctx, strconv.Itoa(int(notification.AccountID)), raw); err != nil {
				log.Warn().Err(err).Uint("account", notification.AccountID).Msg("An error occurred when queueing notification...")
			}
		}
	}

	return nil
}
