package services

import (
	"context"
	"sync"
	"time"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/database"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type readMarkerKey struct {
	ChannelID uint
	AccountID uint
}

var (
	readMarkerQueue = make(map[readMarkerKey]time.Time)
	readMarkerLock  sync.Mutex
)

// MarkRead queues the read marker, FlushReadMarkers writes the latest one.
func MarkRead(channelId, userId uint, at time.Time) {
	readMarkerLock.Lock()
	defer readMarkerLock.Unlock()

	key := readMarkerKey{channelId, userId}
	if val, ok := readMarkerQueue[key]; !ok || at.After(val) {
		readMarkerQueue[key] = at
	}
}

func FlushReadMarkers() {
	readMarkerLock.Lock()
	pending := readMarkerQueue
	readMarkerQueue = make(map[readMarkerKey]time.Time)
	readMarkerLock.Unlock()

	for k, v := range pending {
		if err := database.C.Model(&models.ChannelMember{}).
			Where("channel_id = ? AND account_id = ?", k.ChannelID, k.AccountID).
			Where("last_read_at IS NULL OR last_read_at < ?", v).
			Update("last_read_at", v).Error; err != nil {
			log.Error().Err(err).Msg("An error occurred when flushing read markers...")
		}
	}
}

type UnreadCount struct {
	ChannelID uint  `json:"channel_id"`
	Count     int64 `json:"count"`
}

// UnreadCounts counts root messages from others newer than the read marker.
func UnreadCounts(ctx context.Context, userId uint) ([]UnreadCount, error) {
	prefix := viper.GetString("database.prefix")

	var result []UnreadCount
	if err := database.C.WithContext(ctx).
		Table(prefix+"channel_members AS cm").
		Select("cm.channel_id AS channel_id, COUNT(m.id) AS count").
		Joins("JOIN "+prefix+"messages AS m ON m.channel_id = cm.channel_id").
		Where("cm.account_id = ? AND m.sender_id <> ?", userId, userId).
		Where("m.deleted_at IS NULL AND m.parent_message_id IS NULL").
		Where("cm.last_read_at IS NULL OR m.created_at > cm.last_read_at").
		Group("cm.channel_id").
		Scan(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}
