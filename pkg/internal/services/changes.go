package services

import (
	"context"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/feed"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"github.com/rs/zerolog/log"
)

func publishChange(ctx context.Context, table string, action feed.Action, id uint, columns map[string]any) {
	if err := feed.B.Publish(ctx, feed.Change{
		Table:   table,
		Action:  action,
		ID:      id,
		Columns: columns,
	}); err != nil {
		log.Warn().Err(err).Str("table", table).Uint("id", id).Msg("An error occurred when publishing change...")
	}
}

func messageColumns(message models.Message) map[string]any {
	columns := map[string]any{
		"channel_id": message.ChannelID,
		"sender_id":  message.SenderID,
	}
	if message.ParentMessageID != nil {
		columns["parent_message_id"] = *message.ParentMessageID
	}
	return columns
}
