package services

import (
	"context"
	"fmt"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/database"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/feed"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/metrics"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
)

func memberColumns(member models.ChannelMember) map[string]any {
	return map[string]any{
		"channel_id": member.ChannelID,
		"account_id": member.AccountID,
	}
}

// insertMember creates the membership row, losing a race against another
// insert of the same pair counts as success.
func insertMember(ctx context.Context, channelId, userId uint, role models.MemberRole) error {
	member := models.ChannelMember{
		ChannelID: channelId,
		AccountID: userId,
		Role:      role,
	}
	if err := database.C.WithContext(ctx).Create(&member).Error; err != nil {
		if IsUniqueViolation(err) {
			metrics.MembershipConflicts.Inc()
			return nil
		}
		return err
	}

	publishChange(ctx, feed.TableChannelMembers, feed.ActionInsert, member.ID, memberColumns(member))
	return nil
}

// EnsureMembership makes userId a member of channelId if it is not one yet.
// Concurrent callers for the same pair all succeed and leave exactly one row.
func EnsureMembership(ctx context.Context, channelId, userId uint) (bool, error) {
	if userId == 0 {
		return false, ErrUnauthenticated
	}

	var count int64
	if err := database.C.WithContext(ctx).
		Model(&models.ChannelMember{}).
		Where("channel_id = ? AND account_id = ?", channelId, userId).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("unable to check membership: %w", err)
	} else if count > 0 {
		return true, nil
	}

	if _, err := GetChannel(ctx, channelId); err != nil {
		return false, err
	}

	if err := insertMember(ctx, channelId, userId, models.MemberRoleMember); err != nil {
		return false, fmt.Errorf("unable to join channel: %w", err)
	}

	return true, nil
}

func GetChannelMember(ctx context.Context, channelId, userId uint) (models.ChannelMember, error) {
	var member models.ChannelMember
	if err := database.C.WithContext(ctx).
		Where("channel_id = ? AND account_id = ?", channelId, userId).
		First(&member).Error; err != nil {
		return member, wrapLookup("channel member", err)
	}
	return member, nil
}

func CountChannelMember(ctx context.Context, channelId uint) (int64, error) {
	var count int64
	if err := database.C.WithContext(ctx).
		Model(&models.ChannelMember{}).
		Where("channel_id = ?", channelId).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func ListChannelMember(ctx context.Context, channelId uint, take, offset int) ([]models.ChannelMember, error) {
	var members []models.ChannelMember
	tx := database.C.WithContext(ctx).
		Where("channel_id = ?", channelId).
		Preload("Account").
		Order("id ASC")
	if take > 0 {
		tx = tx.Limit(take).Offset(offset)
	}
	if err := tx.Find(&members).Error; err != nil {
		return members, err
	}
	return members, nil
}

func EditChannelMemberNotify(ctx context.Context, member models.ChannelMember, level models.NotifyLevel) (models.ChannelMember, error) {
	if level < models.NotifyLevelAll || level > models.NotifyLevelNone {
		return member, fmt.Errorf("%w: unknown notify level %d", ErrInvalid, level)
	}
	member.Notify = level
	if err := database.C.WithContext(ctx).Save(&member).Error; err != nil {
		return member, err
	}
	return member, nil
}

// LeaveChannel removes the caller's membership. Owners cannot leave.
func LeaveChannel(ctx context.Context, channelId, userId uint) error {
	member, err := GetChannelMember(ctx, channelId, userId)
	if err != nil {
		return err
	} else if member.Role == models.MemberRoleOwner {
		return fmt.Errorf("%w: you cannot leave your own channel", ErrForbidden)
	}

	if err := database.C.WithContext(ctx).Delete(&member).Error; err != nil {
		return err
	}

	publishChange(ctx, feed.TableChannelMembers, feed.ActionDelete, member.ID, memberColumns(member))
	return nil
}
