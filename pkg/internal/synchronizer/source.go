package synchronizer

import (
	"context"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/services"
)

// Source is where the synchronizer reads full message records from.
type Source interface {
	LoadMessages(ctx context.Context, channelId uint, limit int) ([]models.MessageView, error)
	GetMessageView(ctx context.Context, id uint) (models.MessageView, error)
}

// StoreSource reads from the message store.
type StoreSource struct{}

func (StoreSource) LoadMessages(ctx context.Context, channelId uint, limit int) ([]models.MessageView, error) {
	return services.LoadMessages(ctx, channelId, limit)
}

func (StoreSource) GetMessageView(ctx context.Context, id uint) (models.MessageView, error) {
	return services.GetMessageView(ctx, id)
}
