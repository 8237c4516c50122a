package services

import (
	"context"
	"testing"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyMessageHonoursLevels(t *testing.T) {
	db, channel := setupChannel(t, 2, 3)
	ctx := context.Background()

	member, err := GetChannelMember(ctx, channel.ID, 3)
	require.NoError(t, err)
	_, err = EditChannelMemberNotify(ctx, member, models.NotifyLevelMentioned)
	require.NoError(t, err)

	send(t, channel.ID, 1, "plain")

	var notifications []models.ChatNotification
	require.NoError(t, db.Order("id ASC").Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.EqualValues(t, 2, notifications[0].AccountID)
	assert.Equal(t, "User 1 in general", notifications[0].Title)
	assert.Equal(t, "plain", notifications[0].Body)

	_, err = SendMessage(ctx, 1, SendRequest{
		ChannelID: channel.ID,
		Content:   "hey @user3",
		Metadata:  map[string]any{"related_users": []any{float64(3)}},
	})
	require.NoError(t, err)

	var mentioned int64
	require.NoError(t, db.Model(&models.ChatNotification{}).Where("account_id = ?", 3).Count(&mentioned).Error)
	assert.EqualValues(t, 1, mentioned)

	var own int64
	require.NoError(t, db.Model(&models.ChatNotification{}).Where("account_id = ?", 1).Count(&own).Error)
	assert.Zero(t, own)
}

func TestMessageDisplayText(t *testing.T) {
	assert.Equal(t, "Voice message", messageDisplayText(models.Message{Type: models.MessageTypeVoice}))
	assert.Equal(t, "1 attachment(s)", messageDisplayText(models.Message{Type: models.MessageTypeFile}))
	assert.Equal(t, "hi", messageDisplayText(models.Message{Type: models.MessageTypeText, Content: "hi"}))
}

func TestMentionedUsersSkipsInvalidIds(t *testing.T) {
	message := models.Message{Metadata: map[string]any{
		"related_users": []any{float64(3), float64(-1), float64(2.5), float64(0), 4, -7, "5", "0", "x"},
	}}
	assert.Equal(t, []uint{3, 4, 5}, mentionedUsers(message))
}
