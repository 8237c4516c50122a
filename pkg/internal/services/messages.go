package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/database"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/feed"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/metrics"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

func preloadMessage(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Reactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Preload("Voice")
}

// resolveViews attaches sender profiles and, for roots, thread reply counts.
// Both lookups are single batched queries regardless of the page size.
func resolveViews(ctx context.Context, messages []models.Message, withThreads bool) ([]models.MessageView, error) {
	profiles, err := ListProfiles(ctx, lo.Map(messages, func(item models.Message, index int) uint {
		return item.SenderID
	}))
	if err != nil {
		return nil, err
	}

	counts := map[uint]int64{}
	if withThreads && len(messages) > 0 {
		var rows []struct {
			ParentMessageID uint
			Count           int64
		}
		if err := database.C.WithContext(ctx).
			Model(&models.Message{}).
			Select("parent_message_id, COUNT(*) AS count").
			Where("parent_message_id IN ?", lo.Map(messages, func(item models.Message, index int) uint {
				return item.ID
			})).
			Group("parent_message_id").
			Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("unable to count thread replies: %w", err)
		}
		for _, row := range rows {
			counts[row.ParentMessageID] = row.Count
		}
	}

	return lo.Map(messages, func(item models.Message, index int) models.MessageView {
		view := models.MessageView{Message: item, ThreadCount: counts[item.ID]}
		if profile, ok := profiles[item.SenderID]; ok {
			view.Sender = lo.ToPtr(profile)
		}
		return view
	}), nil
}

// LoadMessages returns the most recent page of root messages, oldest first.
func LoadMessages(ctx context.Context, channelId uint, limit int) ([]models.MessageView, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	} else if limit > MaxPageSize {
		limit = MaxPageSize
	}

	var messages []models.Message
	if err := preloadMessage(database.C.WithContext(ctx)).
		Where("channel_id = ? AND parent_message_id IS NULL", channelId).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("unable to load messages: %w", err)
	}
	slices.Reverse(messages)

	return resolveViews(ctx, messages, true)
}

// LoadThreadAs is LoadThread for userId, who must be able to read the
// channel of the root message.
func LoadThreadAs(ctx context.Context, userId, parentId uint) ([]models.MessageView, error) {
	parent, err := GetMessage(ctx, parentId)
	if err != nil {
		return nil, err
	}
	channel, err := GetChannel(ctx, parent.ChannelID)
	if err != nil {
		return nil, err
	}
	if ok, err := CanReadChannel(ctx, channel, userId); err != nil {
		return nil, fmt.Errorf("unable to check channel access: %w", err)
	} else if !ok {
		return nil, fmt.Errorf("%w: join the channel before reading its threads", ErrForbidden)
	}
	return LoadThread(ctx, parent.ID)
}

// LoadThread returns every reply of a root message, oldest first.
func LoadThread(ctx context.Context, parentId uint) ([]models.MessageView, error) {
	var messages []models.Message
	if err := preloadMessage(database.C.WithContext(ctx)).
		Where("parent_message_id = ?", parentId).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("unable to load thread: %w", err)
	}

	return resolveViews(ctx, messages, false)
}

func GetMessage(ctx context.Context, id uint) (models.Message, error) {
	var message models.Message
	if err := database.C.WithContext(ctx).Where("id = ?", id).First(&message).Error; err != nil {
		return message, wrapLookup("message", err)
	}
	return message, nil
}

// GetMessageView fetches one message with everything a list entry carries.
func GetMessageView(ctx context.Context, id uint) (models.MessageView, error) {
	var message models.Message
	if err := preloadMessage(database.C.WithContext(ctx)).
		Where("id = ?", id).
		First(&message).Error; err != nil {
		return models.MessageView{}, wrapLookup("message", err)
	}

	views, err := resolveViews(ctx, []models.Message{message}, message.ParentMessageID == nil)
	if err != nil {
		return models.MessageView{}, err
	}
	return views[0], nil
}

type SendRequest struct {
	ChannelID       uint
	Content         string
	Type            models.MessageType
	Metadata        map[string]any
	ParentMessageID *uint
}

func newMessage(ctx context.Context, senderId uint, req SendRequest) (models.Message, error) {
	message := models.Message{
		ChannelID:       req.ChannelID,
		SenderID:        senderId,
		Content:         req.Content,
		Type:            lo.Ternary(len(req.Type) > 0, req.Type, models.MessageTypeText),
		ParentMessageID: req.ParentMessageID,
		Metadata:        datatypes.JSONMap(req.Metadata),
	}
	if err := database.C.WithContext(ctx).Create(&message).Error; err != nil {
		return message, err
	}
	return message, nil
}

// afterMessageCreated runs the side effects of a fully persisted message.
func afterMessageCreated(ctx context.Context, message models.Message) {
	metrics.MessagesSent.WithLabelValues(message.Type).Inc()
	touchChannel(ctx, message.ChannelID)
	publishChange(ctx, feed.TableMessages, feed.ActionInsert, message.ID, messageColumns(message))
	if err := NotifyMessage(ctx, message); err != nil {
		log.Warn().Err(err).Uint("message", message.ID).Msg("An error occurred when notifying channel members...")
	}
}

// SendMessage persists a message, the sender joins the channel first if needed.
func SendMessage(ctx context.Context, senderId uint, req SendRequest) (models.Message, error) {
	req.Content = strings.TrimSpace(req.Content)
	if req.Type == "" || req.Type == models.MessageTypeText {
		if len(req.Content) == 0 {
			return models.Message{}, fmt.Errorf("%w: empty message was not allowed", ErrInvalid)
		}
	}

	if _, err := EnsureMembership(ctx, req.ChannelID, senderId); err != nil {
		return models.Message{}, err
	}

	message, err := newMessage(ctx, senderId, req)
	if err != nil {
		return message, fmt.Errorf("unable to send message: %w", err)
	}
	afterMessageCreated(ctx, message)

	return message, nil
}

// ReplyMessage adds a reply to a thread. Threads are one level deep,
// replying to a reply attaches to the same root.
func ReplyMessage(ctx context.Context, senderId, parentId uint, content string) (models.Message, error) {
	parent, err := GetMessage(ctx, parentId)
	if err != nil {
		return models.Message{}, err
	}

	rootId := parent.ID
	if parent.ParentMessageID != nil {
		rootId = *parent.ParentMessageID
	}

	return SendMessage(ctx, senderId, SendRequest{
		ChannelID:       parent.ChannelID,
		Content:         content,
		Type:            models.MessageTypeText,
		ParentMessageID: &rootId,
	})
}

// getOwnMessage loads a message the user sent, anything else is forbidden.
func getOwnMessage(ctx context.Context, userId, messageId uint) (models.Message, error) {
	message, err := GetMessage(ctx, messageId)
	if err != nil {
		return message, err
	} else if message.SenderID != userId {
		return message, fmt.Errorf("%w: only the sender can change a message", ErrForbidden)
	}
	if _, err := EnsureMembership(ctx, message.ChannelID, userId); err != nil {
		return message, err
	}
	return message, nil
}

func EditMessage(ctx context.Context, userId, messageId uint, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if len(content) == 0 {
		return models.Message{}, fmt.Errorf("%w: you cannot edit a message to empty", ErrInvalid)
	}

	message, err := getOwnMessage(ctx, userId, messageId)
	if err != nil {
		return message, err
	}

	if err := database.C.WithContext(ctx).
		Model(&message).
		Updates(map[string]any{"content": content, "is_edited": true}).Error; err != nil {
		return message, fmt.Errorf("unable to edit message: %w", err)
	}
	message.Content = content
	message.IsEdited = true

	publishChange(ctx, feed.TableMessages, feed.ActionUpdate, message.ID, messageColumns(message))
	return message, nil
}

// DeleteMessage soft deletes the message and its thread replies, reactions,
// attachments and voice clip rows go with it.
func DeleteMessage(ctx context.Context, userId, messageId uint) (models.Message, error) {
	message, err := getOwnMessage(ctx, userId, messageId)
	if err != nil {
		return message, err
	}

	var replies []models.Message
	if message.ParentMessageID == nil {
		if err := database.C.WithContext(ctx).
			Where("parent_message_id = ?", message.ID).
			Find(&replies).Error; err != nil {
			return message, fmt.Errorf("unable to get thread replies: %w", err)
		}
	}
	targets := append([]models.Message{message}, replies...)
	idx := lo.Map(targets, func(item models.Message, index int) uint {
		return item.ID
	})

	var attachments []models.MessageAttachment
	if err := database.C.WithContext(ctx).Where("message_id IN ?", idx).Find(&attachments).Error; err != nil {
		return message, fmt.Errorf("unable to get attachments: %w", err)
	}
	var voices []models.VoiceMessage
	if err := database.C.WithContext(ctx).Where("message_id IN ?", idx).Find(&voices).Error; err != nil {
		return message, fmt.Errorf("unable to get voice clips: %w", err)
	}
	refs := append(
		lo.Map(attachments, func(item models.MessageAttachment, index int) string {
			return item.StorageRef
		}),
		lo.Map(voices, func(item models.VoiceMessage, index int) string {
			return item.StorageRef
		})...,
	)

	// Stored objects are only removed once every row is gone
	if err := database.C.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id IN ?", idx).Delete(&models.Message{}).Error; err != nil {
			return fmt.Errorf("unable to delete message: %w", err)
		}
		if err := tx.Where("message_id IN ?", idx).Delete(&models.MessageReaction{}).Error; err != nil {
			return fmt.Errorf("unable to delete reactions: %w", err)
		}
		if err := tx.Where("message_id IN ?", idx).Delete(&models.MessageAttachment{}).Error; err != nil {
			return fmt.Errorf("unable to delete attachments: %w", err)
		}
		if err := tx.Where("message_id IN ?", idx).Delete(&models.VoiceMessage{}).Error; err != nil {
			return fmt.Errorf("unable to delete voice clips: %w", err)
		}
		return nil
	}); err != nil {
		return message, err
	}
	removeObjects(ctx, refs)

	for _, item := range targets {
		publishChange(ctx, feed.TableMessages, feed.ActionDelete, item.ID, messageColumns(item))
	}
	return message, nil
}
