package services

import (
	"context"
	"fmt"
	"strings"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/database"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/feed"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"github.com/samber/lo"
)

// ToggleReaction adds the reaction when absent and removes it when present.
// The returned flag tells whether the reaction exists afterwards.
func ToggleReaction(ctx context.Context, userId, messageId uint, symbol string) (bool, error) {
	symbol = strings.TrimSpace(symbol)
	if len(symbol) == 0 {
		return false, fmt.Errorf("%w: reaction symbol is required", ErrInvalid)
	}

	message, err := GetMessage(ctx, messageId)
	if err != nil {
		return false, err
	}
	if _, err := EnsureMembership(ctx, message.ChannelID, userId); err != nil {
		return false, err
	}

	var reacted bool
	tx := database.C.WithContext(ctx).
		Where("message_id = ? AND account_id = ? AND symbol = ?", messageId, userId, symbol).
		Delete(&models.MessageReaction{})
	if tx.Error != nil {
		return false, fmt.Errorf("unable to remove reaction: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		reaction := models.MessageReaction{
			MessageID: messageId,
			AccountID: userId,
			Symbol:    symbol,
		}
		if err := database.C.WithContext(ctx).Create(&reaction).Error; err != nil && !IsUniqueViolation(err) {
			return false, fmt.Errorf("unable to add reaction: %w", err)
		}
		reacted = true
	}

	publishChange(ctx, feed.TableMessages, feed.ActionUpdate, message.ID, messageColumns(message))
	return reacted, nil
}

// GroupReactions folds reaction rows into per-symbol counters, first use first.
func GroupReactions(reactions []models.MessageReaction) []models.ReactionGroup {
	var groups []models.ReactionGroup
	for _, reaction := range reactions {
		_, idx, ok := lo.FindIndexOf(groups, func(item models.ReactionGroup) bool {
			return item.Symbol == reaction.Symbol
		})
		if !ok {
			groups = append(groups, models.ReactionGroup{Symbol: reaction.Symbol})
			idx = len(groups) - 1
		}
		groups[idx].Count++
		groups[idx].Accounts = append(groups[idx].Accounts, reaction.AccountID)
	}
	return groups
}
