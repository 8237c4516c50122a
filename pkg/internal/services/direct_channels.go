package services

import (
	"context"
	"fmt"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/database"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"github.com/spf13/viper"
)

func GetDirectChannelByUser(ctx context.Context, user, other uint) (models.Channel, error) {
	prefix := viper.GetString("database.prefix")
	memberTable := prefix + "channel_members"
	channelTable := prefix + "channels"

	var channel models.Channel
	if err := database.C.WithContext(ctx).
		Where(fmt.Sprintf("%s.kind = ?", channelTable), models.ChannelKindDirect).
		Joins(fmt.Sprintf("JOIN %s cm1 ON cm1.channel_id = %s.id AND cm1.account_id = ?", memberTable, channelTable), user).
		Joins(fmt.Sprintf("JOIN %s cm2 ON cm2.channel_id = %s.id AND cm2.account_id = ?", memberTable, channelTable), other).
		First(&channel).Error; err != nil {
		return channel, wrapLookup("direct channel", err)
	}
	return channel, nil
}
