package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/database"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/feed"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// ChannelFlags derives the visibility flags for a channel kind.
// Only group channels let the caller choose, the other kinds fix both flags.
func ChannelFlags(kind models.ChannelKind, private bool) (isPublic, isPrivate bool, err error) {
	switch kind {
	case models.ChannelKindDirect:
		return false, true, nil
	case models.ChannelKindGroup:
		return !private, private, nil
	case models.ChannelKindPublic:
		if private {
			return false, false, fmt.Errorf("%w: public channel cannot be private", ErrInvalid)
		}
		return true, false, nil
	case models.ChannelKindPrivate:
		return false, true, nil
	default:
		return false, false, fmt.Errorf("%w: unknown channel kind %q", ErrInvalid, kind)
	}
}

func GetChannel(ctx context.Context, id uint) (models.Channel, error) {
	var channel models.Channel
	if err := database.C.WithContext(ctx).Where("id = ?", id).First(&channel).Error; err != nil {
		return channel, wrapLookup("channel", err)
	}
	return channel, nil
}

// CanReadChannel reports whether userId may read the channel history.
func CanReadChannel(ctx context.Context, channel models.Channel, userId uint) (bool, error) {
	if channel.IsPublic {
		return true, nil
	}
	var count int64
	if err := database.C.WithContext(ctx).
		Model(&models.ChannelMember{}).
		Where("channel_id = ? AND account_id = ?", channel.ID, userId).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ResolveDisplayIdentity projects the name and avatar a viewer sees.
// Direct channels show the other member, the stored name is ignored for them.
func ResolveDisplayIdentity(channel models.Channel, members []models.ChannelMember, profiles map[uint]models.Profile, viewer uint) models.DisplayInfo {
	display := models.DisplayInfo{Name: channel.Name}
	if channel.Kind != models.ChannelKindDirect {
		return display
	}

	partner, ok := lo.Find(members, func(item models.ChannelMember) bool {
		return item.ChannelID == channel.ID && item.AccountID != viewer
	})
	if !ok {
		return display
	}
	if profile, ok := profiles[partner.AccountID]; ok {
		display.Name = profile.DisplayName()
		display.Avatar = profile.Avatar
	}
	return display
}

// ListChannel returns the channels the user belongs to plus every public channel.
func ListChannel(ctx context.Context, userId uint) ([]models.ChannelView, error) {
	var identities []models.ChannelMember
	if err := database.C.WithContext(ctx).
		Where("account_id = ?", userId).
		Find(&identities).Error; err != nil {
		return nil, fmt.Errorf("unable to get identities: %w", err)
	}
	idRange := lo.Map(identities, func(item models.ChannelMember, index int) uint {
		return item.ChannelID
	})

	tx := database.C.WithContext(ctx)
	if len(idRange) > 0 {
		tx = tx.Where("id IN ? OR is_public = ?", idRange, true)
	} else {
		tx = tx.Where("is_public = ?", true)
	}

	var channels []models.Channel
	if err := tx.Order("updated_at DESC").Find(&channels).Error; err != nil {
		return nil, err
	}

	return buildChannelViews(ctx, channels, identities, userId)
}

func buildChannelViews(ctx context.Context, channels []models.Channel, identities []models.ChannelMember, viewer uint) ([]models.ChannelView, error) {
	directIdx := lo.FilterMap(channels, func(item models.Channel, index int) (uint, bool) {
		return item.ID, item.Kind == models.ChannelKindDirect
	})

	var directMembers []models.ChannelMember
	profiles := map[uint]models.Profile{}
	if len(directIdx) > 0 {
		if err := database.C.WithContext(ctx).
			Where("channel_id IN ?", directIdx).
			Find(&directMembers).Error; err != nil {
			return nil, fmt.Errorf("unable to get direct channel members: %w", err)
		}
		var err error
		profiles, err = ListProfiles(ctx, lo.Map(directMembers, func(item models.ChannelMember, index int) uint {
			return item.AccountID
		}))
		if err != nil {
			return nil, err
		}
	}

	identityMap := lo.KeyBy(identities, func(item models.ChannelMember) uint {
		return item.ChannelID
	})

	return lo.Map(channels, func(item models.Channel, index int) models.ChannelView {
		view := models.ChannelView{
			Channel: item,
			Display: ResolveDisplayIdentity(item, directMembers, profiles, viewer),
		}
		if member, ok := identityMap[item.ID]; ok {
			view.Membership = lo.ToPtr(member)
		}
		return view
	}), nil
}

// SelectChannel opens a channel for the user, joining it on the way.
func SelectChannel(ctx context.Context, channelId, userId uint) (models.ChannelView, error) {
	channel, err := GetChannel(ctx, channelId)
	if err != nil {
		return models.ChannelView{}, err
	}
	if _, err := EnsureMembership(ctx, channel.ID, userId); err != nil {
		return models.ChannelView{}, err
	}

	var members []models.ChannelMember
	if err := database.C.WithContext(ctx).
		Where("channel_id = ?", channel.ID).
		Find(&members).Error; err != nil {
		return models.ChannelView{}, fmt.Errorf("unable to get channel members: %w", err)
	}

	profiles := map[uint]models.Profile{}
	if channel.Kind == models.ChannelKindDirect {
		for _, member := range members {
			if member.AccountID == userId {
				continue
			}
			if profile, err := GetProfile(ctx, member.AccountID); err == nil {
				profiles[member.AccountID] = profile
			}
		}
	}

	view := models.ChannelView{
		Channel: channel,
		Display: ResolveDisplayIdentity(channel, members, profiles, userId),
	}
	if member, ok := lo.Find(members, func(item models.ChannelMember) bool {
		return item.AccountID == userId
	}); ok {
		view.Membership = &member
	}
	return view, nil
}

type CreateChannelRequest struct {
	Name        string
	Description string
	Kind        models.ChannelKind
	Private     bool
	MemberIDs   []uint
}

// CreateChannel creates the channel with the creator as owner and seeds the
// initial members. A *SeedError is returned together with the channel when
// only the seeding partially failed.
func CreateChannel(ctx context.Context, creator uint, req CreateChannelRequest) (models.Channel, error) {
	if creator == 0 {
		return models.Channel{}, ErrUnauthenticated
	}

	isPublic, isPrivate, err := ChannelFlags(req.Kind, req.Private)
	if err != nil {
		return models.Channel{}, err
	}

	memberIds := lo.Uniq(lo.Filter(req.MemberIDs, func(item uint, index int) bool {
		return item != 0 && item != creator
	}))

	if req.Kind == models.ChannelKindDirect {
		if len(memberIds) != 1 {
			return models.Channel{}, fmt.Errorf("%w: direct channel needs exactly one partner", ErrInvalid)
		}
		if channel, err := GetDirectChannelByUser(ctx, creator, memberIds[0]); err == nil {
			return channel, nil
		} else if !errors.Is(err, ErrNotFound) {
			return models.Channel{}, err
		}
	} else if len(strings.TrimSpace(req.Name)) == 0 {
		return models.Channel{}, fmt.Errorf("%w: channel name is required", ErrInvalid)
	}

	channel := models.Channel{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Kind:        req.Kind,
		IsPublic:    isPublic,
		IsPrivate:   isPrivate,
		CreatedBy:   creator,
	}
	if err := database.C.WithContext(ctx).Create(&channel).Error; err != nil {
		return channel, fmt.Errorf("unable to create channel: %w", err)
	}
	publishChange(ctx, feed.TableChannels, feed.ActionInsert, channel.ID, nil)

	if err := insertMember(ctx, channel.ID, creator, models.MemberRoleOwner); err != nil {
		return channel, &SeedError{Failed: []uint{creator}, Err: err}
	}

	var failed []uint
	var lastErr error
	for _, id := range memberIds {
		if err := insertMember(ctx, channel.ID, id, models.MemberRoleMember); err != nil {
			failed = append(failed, id)
			lastErr = err
		}
	}
	if len(failed) > 0 {
		return channel, &SeedError{Failed: failed, Err: lastErr}
	}

	return channel, nil
}

func EditChannel(ctx context.Context, channel models.Channel, name, description string) (models.Channel, error) {
	channel.Name = name
	channel.Description = description
	if err := database.C.WithContext(ctx).Save(&channel).Error; err != nil {
		return channel, err
	}
	publishChange(ctx, feed.TableChannels, feed.ActionUpdate, channel.ID, nil)
	return channel, nil
}

func DeleteChannel(ctx context.Context, channel models.Channel) error {
	if err := database.C.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&channel).Error; err != nil {
			return fmt.Errorf("unable to delete channel: %w", err)
		}
		if err := tx.Where("channel_id = ?", channel.ID).Delete(&models.Message{}).Error; err != nil {
			return fmt.Errorf("unable to delete channel messages: %w", err)
		}
		if err := tx.Where("channel_id = ?", channel.ID).Delete(&models.ChannelMember{}).Error; err != nil {
			return fmt.Errorf("unable to delete channel members: %w", err)
		}
		return nil
	}); err != nil {
		return err
	}
	publishChange(ctx, feed.TableChannels, feed.ActionDelete, channel.ID, nil)
	return nil
}

// touchChannel bumps updated_at so active channels sort first.
func touchChannel(ctx context.Context, channelId uint) {
	database.C.WithContext(ctx).
		Model(&models.Channel{}).
		Where("id = ?", channelId).
		UpdateColumn("updated_at", time.Now())
}
