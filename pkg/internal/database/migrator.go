package database

import (
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"gorm.io/gorm"
)

var AutoMaintainRange = []any{
	&models.Profile{},
	&models.Channel{},
	&models.ChannelMember{},
	&models.Message{},
	&models.MessageReaction{},
	&models.MessageAttachment{},
	&models.VoiceMessage{},
	&models.ChatCommand{},
	&models.ChatCommandExecution{},
	&models.ChatNotification{},
}

// SoftDeleteRange lists models whose soft-deleted rows the cleaner purges.
var SoftDeleteRange = []any{
	&models.Channel{},
	&models.Message{},
}

func RunMigration(source *gorm.DB) error {
	if err := source.AutoMigrate(AutoMaintainRange...); err != nil {
		return err
	}

	return nil
}
